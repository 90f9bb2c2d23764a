//go:build integration

package kafka_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "hive/pkg/platform/audit"
	"hive/pkg/platform/audit/publishers/kafka"
	"hive/pkg/testutil/containers"
)

type PublisherSuite struct {
	suite.Suite
	redpanda *containers.RedpandaContainer
}

func TestPublisherSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PublisherSuite))
}

func (s *PublisherSuite) SetupSuite() {
	s.redpanda = containers.NewRedpandaContainer(s.T())
}

func (s *PublisherSuite) TestPublishRoundTrip() {
	ctx := context.Background()
	topic := "hive.audit.test." + uuid.NewString()

	publisher, err := kafka.New(s.redpanda.Brokers, kafka.WithTopic(topic))
	s.Require().NoError(err)
	defer publisher.Close()
	s.Require().NoError(publisher.EnsureTopic(ctx))

	event := audit.Event{
		ID:         uuid.NewString(),
		Timestamp:  time.Now().UTC().Truncate(time.Millisecond),
		Action:     audit.ActionEmployeeDeactivated,
		EntityType: "employee",
		EntityID:   uuid.NewString(),
		ActorID:    "head@example.com",
	}
	s.Require().NoError(publisher.Publish(ctx, event))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.redpanda.Brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	fetchCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	fetches := consumer.PollFetches(fetchCtx)
	s.Require().NoError(fetches.Err())

	records := fetches.Records()
	s.Require().Len(records, 1)
	s.Equal("employee:"+event.EntityID, string(records[0].Key), "events are keyed by entity for ordering")

	var received audit.Event
	s.Require().NoError(json.Unmarshal(records[0].Value, &received))
	s.Equal(event.ID, received.ID)
	s.Equal(event.Action, received.Action)
	s.Equal(event.ActorID, received.ActorID)
}

func (s *PublisherSuite) TestEnsureTopicIsIdempotent() {
	ctx := context.Background()
	topic := "hive.audit.test." + uuid.NewString()

	publisher, err := kafka.New(s.redpanda.Brokers, kafka.WithTopic(topic))
	s.Require().NoError(err)
	defer publisher.Close()

	s.Require().NoError(publisher.EnsureTopic(ctx))
	s.NoError(publisher.EnsureTopic(ctx), "re-creating an existing topic must not fail")
}
