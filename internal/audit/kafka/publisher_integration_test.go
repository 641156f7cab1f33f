//go:build integration

package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"loanflow/internal/audit"
	"loanflow/pkg/testutil/containers"
)

func TestPublisherRoundTrip(t *testing.T) {
	rp := containers.Shared().Redpanda(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pub, err := New(rp.Brokers, "loanflow.audit.test")
	require.NoError(t, err)
	defer pub.Close()

	require.NoError(t, pub.EnsureTopic(ctx, 1, 1))
	require.NoError(t, pub.EnsureTopic(ctx, 1, 1), "existing topic is not an error")
	require.NoError(t, pub.Health(ctx))

	entry := audit.NewEntry("app-9", audit.KindOutcome, "", "approved", map[string]any{"approved_amount": 500000})
	require.NoError(t, pub.Append(ctx, entry))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(rp.Brokers...),
		kgo.ConsumeTopics("loanflow.audit.test"),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	require.Empty(t, fetches.Errors())
	records := fetches.Records()
	require.NotEmpty(t, records)

	require.Equal(t, "app-9", string(records[0].Key))
	var got audit.Entry
	require.NoError(t, json.Unmarshal(records[0].Value, &got))
	require.Equal(t, entry.ID, got.ID)
	require.Equal(t, "approved", got.Status)
}

func TestNewValidatesArguments(t *testing.T) {
	_, err := New(nil, "topic")
	require.Error(t, err)
	_, err = New([]string{"localhost:9092"}, "")
	require.Error(t, err)
}
