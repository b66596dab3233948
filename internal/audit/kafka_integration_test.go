//go:build integration

package audit_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"knomee/internal/audit"
	"knomee/internal/platform/config"
	"knomee/internal/platform/kafka"
	"knomee/pkg/testutil/containers"
)

func TestKafkaStorePublishesToAuditTopic(t *testing.T) {
	rp := containers.NewRedpandaContainer(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cfg := config.KafkaConfig{
		Brokers:           []string{rp.Broker},
		AuditTopic:        "knomee.audit.test",
		Partitions:        1,
		ReplicationFactor: 1,
	}
	producer, err := kafka.New(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(producer.Close)
	require.NoError(t, kafka.EnsureTopic(ctx, producer, cfg))
	require.NoError(t, kafka.EnsureTopic(ctx, producer, cfg), "topic creation is idempotent")

	publisher := audit.NewPublisher(audit.NewKafkaStore(producer, cfg.AuditTopic))
	require.NoError(t, publisher.Emit(ctx, audit.Event{
		Action:  string(audit.EventClaimResolved),
		Actor:   "resolver",
		ClaimID: 42,
		Details: map[string]string{"status": "approved"},
	}))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(rp.Broker),
		kgo.ConsumeTopics(cfg.AuditTopic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	t.Cleanup(consumer.Close)

	fetches := consumer.PollFetches(ctx)
	require.NoError(t, fetches.Err())
	records := fetches.Records()
	require.Len(t, records, 1)

	record := records[0]
	assert.Equal(t, "claim-42", string(record.Key))
	var event audit.Event
	require.NoError(t, json.Unmarshal(record.Value, &event))
	assert.Equal(t, audit.CategoryProtocol, event.Category)
	assert.Equal(t, "approved", event.Details["status"])
	assert.NotEmpty(t, event.ID)
}
