package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/cenkalti/backoff/v5"

	"github.com/wolfman30/facility-lead-chat/internal/leads"
	"github.com/wolfman30/facility-lead-chat/pkg/logging"
)

const (
	manifestRetryInitial    = 50 * time.Millisecond
	manifestRetryMaxElapsed = 10 * time.Second
)

// S3API is the subset of the S3 client used by Store.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Options tunes a Store.
type Options struct {
	// ScrubPII replaces emails and phone numbers before upload.
	ScrubPII bool
}

// Store archives lead transcripts to S3.
type Store struct {
	bucket   string
	s3Client S3API
	opts     Options
	now      func() time.Time
	logger   *logging.Logger
}

// NewStore creates an archive Store. If bucket is empty, all operations are no-ops.
func NewStore(s3Client S3API, bucket string, opts Options, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{bucket: bucket, s3Client: s3Client, opts: opts, now: time.Now, logger: logger}
}

// Enabled returns true if archival is configured.
func (s *Store) Enabled() bool {
	return s != nil && s.bucket != "" && s.s3Client != nil
}

// Key returns the object key for a lead: leads/<yyyy>/<mm>/<lead-id>.json.
func Key(lead *leads.Lead) string {
	ts := lead.CreatedAt.UTC()
	return fmt.Sprintf("leads/%04d/%02d/%s.json", ts.Year(), ts.Month(), lead.ID)
}

// Put writes the lead and its transcript and returns the object key.
func (s *Store) Put(ctx context.Context, lead *leads.Lead, transcript []Message) (string, error) {
	if !s.Enabled() {
		return "", nil
	}
	if lead == nil || lead.ID == "" {
		return "", errors.New("archive: lead id required")
	}
	if lead.CreatedAt.IsZero() {
		copied := *lead
		copied.CreatedAt = s.now().UTC()
		lead = &copied
	}

	rec := &Record{
		Version:      recordVersion,
		LeadID:       lead.ID,
		SessionID:    lead.SessionID,
		PhoneHash:    HashPhone(lead.Phone),
		ArchivedAt:   s.now().UTC(),
		Lead:         lead,
		MessageCount: len(transcript),
		Messages:     append([]Message(nil), transcript...),
	}
	if s.opts.ScrubPII {
		scrubRecord(rec)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("archive: marshal record: %w", err)
	}

	key := Key(lead)
	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("archive: s3 put %s: %w", key, err)
	}
	s.logger.Info("archived lead transcript", "lead_id", lead.ID, "s3_key", key, "message_count", rec.MessageCount)

	entry := ManifestEntry{
		LeadID:       lead.ID,
		S3Key:        key,
		FacilityType: lead.FacilityType,
		Source:       lead.Source,
		ArchivedAt:   rec.ArchivedAt.Format(time.RFC3339),
		MessageCount: rec.MessageCount,
	}
	if err := s.AppendManifest(ctx, lead.CreatedAt, entry); err != nil {
		// The record itself is stored; a missing index line is recoverable.
		s.logger.Warn("failed to append manifest", "error", err, "lead_id", lead.ID)
	}
	return key, nil
}

// ManifestKey returns the JSONL index key for the month containing t.
func ManifestKey(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("leads/manifests/%04d-%02d.jsonl", t.Year(), t.Month())
}

// AppendManifest appends a JSONL line to the manifest for month. S3 has no
// append, so this reads, extends and conditionally rewrites the object,
// retrying when another writer got there first.
func (s *Store) AppendManifest(ctx context.Context, month time.Time, entry ManifestEntry) error {
	if !s.Enabled() {
		return nil
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("archive: marshal manifest entry: %w", err)
	}
	key := ManifestKey(month)

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = manifestRetryInitial
	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, s.appendOnce(ctx, key, line)
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxElapsedTime(manifestRetryMaxElapsed),
		backoff.WithNotify(func(err error, wait time.Duration) {
			s.logger.Debug("manifest write conflict, retrying", "key", key, "error", err, "wait_ms", wait.Milliseconds())
		}),
	)
	if err != nil {
		return fmt.Errorf("archive: append manifest %s: %w", key, err)
	}
	return nil
}

func (s *Store) appendOnce(ctx context.Context, key string, line []byte) error {
	var (
		existing []byte
		etag     string
	)
	getResp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	switch {
	case err == nil:
		etag = aws.ToString(getResp.ETag)
		existing, err = io.ReadAll(getResp.Body)
		getResp.Body.Close()
		if err != nil {
			return backoff.Permanent(fmt.Errorf("read manifest: %w", err))
		}
	case isNotFound(err):
		s.logger.Debug("manifest not found, creating new", "key", key)
	default:
		return backoff.Permanent(fmt.Errorf("get manifest: %w", err))
	}

	var buf bytes.Buffer
	if len(existing) > 0 {
		buf.Write(existing)
		if existing[len(existing)-1] != '\n' {
			buf.WriteByte('\n')
		}
	}
	buf.Write(line)
	buf.WriteByte('\n')

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	}
	if etag == "" {
		input.IfNoneMatch = aws.String("*")
	} else {
		input.IfMatch = aws.String(etag)
	}
	if _, err := s.s3Client.PutObject(ctx, input); err != nil {
		if isWriteConflict(err) {
			return err
		}
		return backoff.Permanent(fmt.Errorf("put manifest: %w", err))
	}
	return nil
}

// isWriteConflict reports a failed conditional write.
func isWriteConflict(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "PreconditionFailed", "ConditionalRequestConflict":
		return true
	}
	return false
}

func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var notFound *s3types.NotFound
	return errors.As(err, &notFound)
}
