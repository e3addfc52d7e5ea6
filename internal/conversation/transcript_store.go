package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	transcriptKeyPrefix   = "chat_transcript:"
	defaultMaxTranscript  = 250
	transcriptRoleVisitor = ChatRoleUser
	transcriptRoleBot     = ChatRoleAssistant
)

// TranscriptMessage is one stored line of a chat.
type TranscriptMessage struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Body      string    `json:"body"`
	Step      string    `json:"step,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// TranscriptStore keeps the message log of each session.
type TranscriptStore interface {
	Append(ctx context.Context, sessionID string, msg TranscriptMessage) error
	List(ctx context.Context, sessionID string, limit int64) ([]TranscriptMessage, error)
}

// RedisTranscriptStore stores transcripts as capped Redis lists.
type RedisTranscriptStore struct {
	redis       *redis.Client
	tracer      trace.Tracer
	ttl         time.Duration
	maxMessages int64
}

func NewRedisTranscriptStore(client *redis.Client, ttl time.Duration) *RedisTranscriptStore {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &RedisTranscriptStore{
		redis:       client,
		tracer:      otel.Tracer("leadchat.internal.conversation.transcript"),
		ttl:         ttl,
		maxMessages: defaultMaxTranscript,
	}
}

func (s *RedisTranscriptStore) Append(ctx context.Context, sessionID string, msg TranscriptMessage) error {
	if sessionID == "" {
		return errors.New("conversation: transcript session id required")
	}
	stampMessage(&msg)

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("conversation: marshal transcript message: %w", err)
	}

	ctx, span := s.tracer.Start(ctx, "conversation.transcript.append")
	defer span.End()

	key := transcriptKey(sessionID)
	pipe := s.redis.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.Expire(ctx, key, s.ttl)
	if s.maxMessages > 0 {
		pipe.LTrim(ctx, key, -s.maxMessages, -1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: append transcript message: %w", err)
	}
	return nil
}

func (s *RedisTranscriptStore) List(ctx context.Context, sessionID string, limit int64) ([]TranscriptMessage, error) {
	if sessionID == "" {
		return nil, errors.New("conversation: transcript session id required")
	}

	ctx, span := s.tracer.Start(ctx, "conversation.transcript.list")
	defer span.End()

	start := int64(0)
	if limit > 0 {
		start = -limit
	}
	raw, err := s.redis.LRange(ctx, transcriptKey(sessionID), start, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []TranscriptMessage{}, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: list transcript: %w", err)
	}

	out := make([]TranscriptMessage, 0, len(raw))
	for _, item := range raw {
		var msg TranscriptMessage
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			span.RecordError(err)
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

func transcriptKey(sessionID string) string {
	return transcriptKeyPrefix + sessionID
}

func stampMessage(msg *TranscriptMessage) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
}

// MemoryTranscriptStore is a process-local TranscriptStore.
type MemoryTranscriptStore struct {
	mu          sync.Mutex
	maxMessages int
	logs        map[string][]TranscriptMessage
}

func NewMemoryTranscriptStore() *MemoryTranscriptStore {
	return &MemoryTranscriptStore{
		maxMessages: defaultMaxTranscript,
		logs:        make(map[string][]TranscriptMessage),
	}
}

func (s *MemoryTranscriptStore) Append(_ context.Context, sessionID string, msg TranscriptMessage) error {
	if sessionID == "" {
		return errors.New("conversation: transcript session id required")
	}
	stampMessage(&msg)

	s.mu.Lock()
	defer s.mu.Unlock()
	log := append(s.logs[sessionID], msg)
	if len(log) > s.maxMessages {
		log = log[len(log)-s.maxMessages:]
	}
	s.logs[sessionID] = log
	return nil
}

func (s *MemoryTranscriptStore) List(_ context.Context, sessionID string, limit int64) ([]TranscriptMessage, error) {
	if sessionID == "" {
		return nil, errors.New("conversation: transcript session id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.logs[sessionID]
	if limit > 0 && int64(len(log)) > limit {
		log = log[int64(len(log))-limit:]
	}
	out := make([]TranscriptMessage, len(log))
	copy(out, log)
	return out, nil
}

// ToChatMessages converts stored lines into LLM chat history.
func ToChatMessages(msgs []TranscriptMessage) []ChatMessage {
	out := make([]ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, ChatMessage{Role: m.Role, Content: m.Body})
	}
	return out
}
