package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/facility-lead-chat/internal/brand"
	appconfig "github.com/wolfman30/facility-lead-chat/internal/config"
	"github.com/wolfman30/facility-lead-chat/internal/conversation"
	"github.com/wolfman30/facility-lead-chat/internal/dispatch"
	"github.com/wolfman30/facility-lead-chat/internal/leads"
	"github.com/wolfman30/facility-lead-chat/internal/messaging"
	"github.com/wolfman30/facility-lead-chat/internal/notify"
	"github.com/wolfman30/facility-lead-chat/internal/observability/metrics"
	"github.com/wolfman30/facility-lead-chat/pkg/logging"
)

var testAWS = aws.Config{Region: "us-east-1"}

func TestBuildRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)
	logger := logging.Default()

	assert.Nil(t, BuildRedisClient(context.Background(), &appconfig.Config{}, logger, true))

	client := BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: mr.Addr()}, logger, true)
	require.NotNil(t, client)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())

	addr := mr.Addr()
	mr.Close()
	assert.Nil(t, BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: addr}, logger, true))
}

func TestBuildChatStores(t *testing.T) {
	stores := BuildChatStores(nil, 0)
	assert.IsType(t, &conversation.MemorySessionStore{}, stores.Sessions)
	assert.IsType(t, &conversation.MemoryTranscriptStore{}, stores.Transcripts)

	mr := miniredis.RunT(t)
	client := BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: mr.Addr()}, nil, false)
	t.Cleanup(func() { _ = client.Close() })
	stores = BuildChatStores(client, time.Hour)
	assert.IsType(t, &conversation.RedisSessionStore{}, stores.Sessions)
	assert.IsType(t, &conversation.RedisTranscriptStore{}, stores.Transcripts)
}

func TestBuildLeadRepositoryWithoutPool(t *testing.T) {
	repo := BuildLeadRepository(nil, nil)
	assert.IsType(t, &leads.InMemoryRepository{}, repo)

	pool, err := ConnectPostgresPool(context.Background(), &appconfig.Config{}, nil)
	require.NoError(t, err)
	assert.Nil(t, pool)

	db, err := OpenDeliveryDB(&appconfig.Config{})
	require.NoError(t, err)
	assert.Nil(t, db)
}

func TestBuildLLMClient(t *testing.T) {
	ctx := context.Background()
	m := metrics.NewChatMetrics(prometheus.NewRegistry())

	client, err := BuildLLMClient(ctx, &appconfig.Config{}, testAWS, m, nil)
	require.NoError(t, err)
	assert.Nil(t, client)

	_, err = BuildLLMClient(ctx, &appconfig.Config{LLMProvider: "openai"}, testAWS, m, nil)
	assert.ErrorContains(t, err, "unknown llm provider")

	_, err = BuildLLMClient(ctx, &appconfig.Config{LLMProvider: ProviderAnthropic}, testAWS, m, nil)
	assert.ErrorContains(t, err, "api key is required")

	client, err = BuildLLMClient(ctx, &appconfig.Config{LLMProvider: ProviderBedrock}, testAWS, m, nil)
	require.NoError(t, err)
	assert.IsType(t, &conversation.InstrumentedLLMClient{}, client)

	client, err = BuildLLMClient(ctx, &appconfig.Config{
		LLMProvider:         ProviderBedrock,
		LLMFallbackProvider: ProviderAnthropic,
		AnthropicAPIKey:     "sk-test",
	}, testAWS, m, nil)
	require.NoError(t, err)
	assert.IsType(t, &conversation.FallbackLLMClient{}, client)

	client, err = BuildLLMClient(ctx, &appconfig.Config{
		LLMProvider:         ProviderBedrock,
		LLMFallbackProvider: ProviderAnthropic,
	}, testAWS, m, nil)
	require.NoError(t, err)
	assert.IsType(t, &conversation.InstrumentedLLMClient{}, client)
}

func TestBuildAnswererDisabledWithoutClient(t *testing.T) {
	answerer := BuildAnswerer(&appconfig.Config{LLMMaxTokens: 200, LLMTimeout: time.Second}, nil, nil)
	assert.False(t, answerer.Enabled())
}

func TestBuildQueue(t *testing.T) {
	queue, err := BuildQueue(&appconfig.Config{UseMemoryQueue: true}, testAWS)
	require.NoError(t, err)
	assert.IsType(t, &dispatch.MemoryQueue{}, queue)

	_, err = BuildQueue(&appconfig.Config{}, testAWS)
	assert.ErrorContains(t, err, "LEAD_QUEUE_URL")

	queue, err = BuildQueue(&appconfig.Config{LeadQueueURL: "http://localhost:4566/000000000000/leads"}, testAWS)
	require.NoError(t, err)
	assert.IsType(t, &dispatch.SQSQueue{}, queue)
}

func TestBuildEmailSender(t *testing.T) {
	logger := logging.Default()

	assert.Nil(t, BuildEmailSender(&appconfig.Config{EmailProvider: "sendgrid"}, testAWS, logger))
	assert.Nil(t, BuildEmailSender(&appconfig.Config{EmailProvider: "none"}, testAWS, logger))
	assert.IsType(t, &notify.SendGridSender{}, BuildEmailSender(&appconfig.Config{EmailProvider: "sendgrid", SendGridAPIKey: "SG.x"}, testAWS, logger))
	assert.IsType(t, &notify.SESSender{}, BuildEmailSender(&appconfig.Config{EmailProvider: "ses"}, testAWS, logger))
	assert.IsType(t, &notify.StubEmailSender{}, BuildEmailSender(&appconfig.Config{EmailProvider: "stub"}, testAWS, logger))
}

func TestBuildNotifierChannels(t *testing.T) {
	logger := logging.Default()
	profile := brand.Default()
	twilio := messaging.NewTwilioSender("", "", "", logger)

	svc := BuildNotifier(&appconfig.Config{EmailProvider: "stub"}, testAWS, profile, twilio, logger)
	assert.False(t, svc.Enabled())

	svc = BuildNotifier(&appconfig.Config{
		EmailProvider:         "stub",
		NotifyEmailRecipients: []string{"owner@example.com"},
	}, testAWS, profile, twilio, logger)
	assert.True(t, svc.Enabled())

	svc = BuildNotifier(&appconfig.Config{PushToken: "t", PushUser: "u"}, testAWS, profile, twilio, logger)
	assert.True(t, svc.Enabled())
}

func TestBuildArchiveDisabledWithoutBucket(t *testing.T) {
	assert.False(t, BuildArchive(&appconfig.Config{}, testAWS, nil).Enabled())
	assert.True(t, BuildArchive(&appconfig.Config{ArchiveBucket: "leads"}, testAWS, nil).Enabled())
}

func TestBuildDispatcherSkipsUnconfiguredSteps(t *testing.T) {
	repo := leads.NewInMemoryRepository()
	dispatcher, deliveryLog, err := BuildDispatcher(&appconfig.Config{
		EmailProvider:  "stub",
		SendVisitorSMS: true,
	}, testAWS, DispatchInputs{
		Profile: brand.Default(),
		Leads:   repo,
		Metrics: metrics.NewDeliveryMetrics(prometheus.NewRegistry()),
	}, nil)
	require.NoError(t, err)
	assert.False(t, deliveryLog.Enabled())

	res, err := dispatcher.Deliver(context.Background(), &leads.Lead{
		ID:           "lead-1",
		FacilityType: "Office",
		Location:     "Austin 78701",
		Frequency:    "Weekly",
		Name:         "Dana Scully",
		Email:        "dana@example.com",
		Phone:        "+15125550100",
		Source:       leads.SourceChat,
	})
	require.NoError(t, err)
	assert.Equal(t, dispatch.StatusDelivered, res.Status())
	require.Len(t, res.Steps, 5)
	assert.Equal(t, dispatch.StepPersist, res.Steps[0].Step)
	assert.Equal(t, dispatch.StatusDelivered, res.Steps[0].Status)
	for _, step := range res.Steps[1:] {
		assert.Equal(t, dispatch.StatusSkipped, step.Status, step.Step)
	}

	stored, err := repo.GetByID(context.Background(), "lead-1")
	require.NoError(t, err)
	assert.Equal(t, "Dana Scully", stored.Name)
}

func TestBuildDispatcherRequiresLeads(t *testing.T) {
	_, _, err := BuildDispatcher(&appconfig.Config{}, testAWS, DispatchInputs{}, nil)
	assert.Error(t, err)
}
