package bootstrap

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/wolfman30/facility-lead-chat/internal/archive"
	"github.com/wolfman30/facility-lead-chat/internal/brand"
	appconfig "github.com/wolfman30/facility-lead-chat/internal/config"
	"github.com/wolfman30/facility-lead-chat/internal/conversation"
	"github.com/wolfman30/facility-lead-chat/internal/dispatch"
	"github.com/wolfman30/facility-lead-chat/internal/leads"
	"github.com/wolfman30/facility-lead-chat/internal/messaging"
	"github.com/wolfman30/facility-lead-chat/internal/notify"
	"github.com/wolfman30/facility-lead-chat/internal/observability/metrics"
	"github.com/wolfman30/facility-lead-chat/internal/sheets"
	"github.com/wolfman30/facility-lead-chat/pkg/logging"
)

// BuildQueue returns the in-process queue, or SQS when USE_MEMORY_QUEUE is off.
func BuildQueue(cfg *appconfig.Config, awsCfg aws.Config) (dispatch.Queue, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if cfg.UseMemoryQueue {
		return dispatch.NewMemoryQueue(0), nil
	}
	if strings.TrimSpace(cfg.LeadQueueURL) == "" {
		return nil, fmt.Errorf("bootstrap: LEAD_QUEUE_URL is required when USE_MEMORY_QUEUE=false")
	}
	queue, err := dispatch.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.LeadQueueURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: sqs queue: %w", err)
	}
	return queue, nil
}

// BuildEmailSender picks the email provider from EMAIL_PROVIDER. It returns
// nil when the chosen provider lacks credentials.
func BuildEmailSender(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) notify.EmailSender {
	switch cfg.EmailProvider {
	case "sendgrid":
		sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.EmailFromAddress,
			FromName:  cfg.EmailFromName,
		}, logger)
		if sender == nil {
			logger.Warn("EMAIL_PROVIDER=sendgrid but SENDGRID_API_KEY is empty; email disabled")
			return nil
		}
		return sender
	case "ses":
		return notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.EmailFromAddress,
			FromName:  cfg.EmailFromName,
		}, logger)
	case "", "none":
		return nil
	default:
		return notify.NewStubEmailSender(logger)
	}
}

// BuildNotifier wires push, email and operator SMS into a notify.Service.
func BuildNotifier(cfg *appconfig.Config, awsCfg aws.Config, profile *brand.Profile, twilio *messaging.TwilioSender, logger *logging.Logger) *notify.Service {
	var push notify.PushSender
	if p := notify.NewPushoverSender(notify.PushoverConfig{
		APIURL: cfg.PushAPIURL,
		Token:  cfg.PushToken,
		User:   cfg.PushUser,
	}, logger); p != nil {
		push = p
	}

	var sms notify.SMSSender
	if twilio.Configured() {
		sms = twilio
	} else if len(cfg.NotifySMSRecipients) > 0 {
		sms = notify.NewStubSMSSender(logger)
	}

	return notify.NewService(profile, push, BuildEmailSender(cfg, awsCfg, logger), sms, notify.Recipients{
		Email: cfg.NotifyEmailRecipients,
		SMS:   cfg.NotifySMSRecipients,
	}, logger)
}

// BuildArchive returns the S3 archive, disabled without ARCHIVE_BUCKET.
func BuildArchive(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) *archive.Store {
	opts := archive.Options{ScrubPII: cfg.ArchiveScrubPII}
	if strings.TrimSpace(cfg.ArchiveBucket) == "" {
		return archive.NewStore(nil, "", opts, logger)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.AWSEndpointOverride != ""
	})
	return archive.NewStore(client, cfg.ArchiveBucket, opts, logger)
}

// DispatchInputs are the runtime pieces the delivery pipeline shares with
// the HTTP server.
type DispatchInputs struct {
	Profile     *brand.Profile
	Leads       leads.Repository
	Transcripts conversation.TranscriptStore
	DB          *sql.DB
	Metrics     *metrics.DeliveryMetrics
}

// BuildDispatcher wires every delivery step from config. Steps without
// configuration are recorded as skipped by the dispatcher.
func BuildDispatcher(cfg *appconfig.Config, awsCfg aws.Config, in DispatchInputs, logger *logging.Logger) (*dispatch.Dispatcher, *dispatch.DeliveryLog, error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	twilio := messaging.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, logger)
	deliveryLog := dispatch.NewDeliveryLog(in.DB)

	deps := dispatch.Deps{
		Leads: in.Leads,
		Sheets: sheets.NewClient(sheets.Config{
			URL:        cfg.SheetsWebhookURL,
			Secret:     cfg.SheetsWebhookSecret,
			MaxElapsed: cfg.SheetsMaxElapsed,
		}, logger),
		Notifier: BuildNotifier(cfg, awsCfg, in.Profile, twilio, logger),
		Archive:  BuildArchive(cfg, awsCfg, logger),
		Log:      deliveryLog,
		Metrics:  in.Metrics,
		Logger:   logger,
	}
	if in.Transcripts != nil {
		deps.Transcripts = in.Transcripts
	}
	if cfg.SendVisitorSMS {
		if twilio.Configured() {
			deps.VisitorSMS = messaging.NewSchedulingLink(in.Profile, twilio, logger)
		} else {
			logger.Warn("SEND_VISITOR_SMS is on but twilio is not configured; visitor texts skipped")
		}
	}

	dispatcher, err := dispatch.NewDispatcher(deps)
	if err != nil {
		return nil, nil, err
	}
	return dispatcher, deliveryLog, nil
}
