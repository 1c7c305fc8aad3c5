//go:build integration

package kafka_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/couchcryptid/hydro-dashboard/internal/adapter/kafka"
	"github.com/couchcryptid/hydro-dashboard/internal/config"
	"github.com/couchcryptid/hydro-dashboard/internal/domain"
	"github.com/couchcryptid/hydro-dashboard/internal/observability"
	"github.com/couchcryptid/hydro-dashboard/internal/session"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

const testTopic = "test-view-events"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node Kafka container and returns its broker address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()

	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("hydro-dashboard-test"))
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err, "start kafka container")

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

// createTopic creates a single-partition topic through the cluster controller.
func createTopic(t *testing.T, broker, topic string) {
	t.Helper()

	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	ctrlConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrlConn.Close()

	require.NoError(t, ctrlConn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// TestPublisherDeliversSessionEvents creates a real session with the publisher
// as listener and reads the resulting events back from Kafka.
func TestPublisherDeliversSessionEvents(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaTopic: testTopic}
	publisher := kafka.NewPublisher(cfg, discardLogger(), observability.NewMetricsForTesting())
	t.Cleanup(func() { _ = publisher.Close() })

	runCtx, stop := context.WithCancel(ctx)
	runDone := make(chan error, 1)
	go func() { runDone <- publisher.Run(runCtx) }()

	registry := session.NewRegistry(emptyBackend{}, session.RegistryConfig{}, discardLogger(), observability.NewMetricsForTesting())
	registry.Subscribe(publisher.Listen)
	s, pending := registry.Create()
	require.NoError(t, pending.Wait(ctx))
	require.NoError(t, s.SetSearchText("ชัยนาท"))

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	seen := map[session.EventType]int{}
	var searched *session.Inputs
	for seen[session.EventInputChanged] == 0 {
		readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
		msg, err := consumer.ReadMessage(readCtx)
		readCancel()
		require.NoError(t, err, "read from event topic")

		assert.Equal(t, s.ID(), string(msg.Key))
		var e session.Event
		require.NoError(t, json.Unmarshal(msg.Value, &e))
		seen[e.Type]++
		if e.Type == session.EventInputChanged {
			searched = e.Inputs
		}
	}

	assert.Equal(t, 1, seen[session.EventSessionCreated])
	assert.Positive(t, seen[session.EventSourceChanged])
	require.NotNil(t, searched)
	assert.Equal(t, "ชัยนาท", searched.Search)

	stop()
	require.NoError(t, <-runDone)
	registry.Close()
}

// emptyBackend answers every collection with no data.
type emptyBackend struct{}

func (emptyBackend) FetchStations(context.Context, domain.Category) ([]domain.Station, error) {
	return nil, nil
}

func (emptyBackend) FetchStationCounts(context.Context) (domain.StationCount, error) {
	return domain.StationCount{}, nil
}

func (emptyBackend) FetchRainfall(context.Context, domain.Date, domain.Date) ([]domain.RainfallSample, error) {
	return nil, nil
}

func (emptyBackend) FetchRegionalAggregates(context.Context) ([]domain.RegionAggregate, error) {
	return nil, nil
}

func (emptyBackend) FetchRegionBoundaries(context.Context) ([]domain.RegionBoundary, error) {
	return nil, nil
}
