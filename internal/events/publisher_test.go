package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/travelsafe/security-barometer/internal/model"
	"github.com/travelsafe/security-barometer/internal/testutil"
)

func TestPublisherIncidentCreated(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	_, js, cleanup := testutil.StartJetStream(t)
	defer cleanup()

	publisher := NewPublisher(logger, js)
	require.NoError(t, publisher.Start())

	received := make(chan *model.Incident, 1)
	sub, err := js.Subscribe(SubjectIncidentCreated, func(msg *nats.Msg) {
		var incident model.Incident
		require.NoError(t, json.Unmarshal(msg.Data, &incident))
		received <- &incident
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	incident := &model.Incident{
		ID:         "inc-1",
		Title:      "Flood warning",
		AlertLevel: model.AlertLevelSevere,
		Source:     model.IncidentSourceGovernment,
	}
	require.NoError(t, publisher.IncidentCreated(context.Background(), incident))

	select {
	case got := <-received:
		require.Equal(t, "inc-1", got.ID)
		require.Equal(t, model.AlertLevelSevere, got.AlertLevel)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for incident event")
	}
}

func TestPublisherIncidentsArchived(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	_, js, cleanup := testutil.StartJetStream(t)
	defer cleanup()

	publisher := NewPublisher(logger, js)
	require.NoError(t, publisher.Start())

	received := make(chan ArchiveEvent, 1)
	sub, err := js.Subscribe(SubjectIncidentArchived, func(msg *nats.Msg) {
		var event ArchiveEvent
		require.NoError(t, json.Unmarshal(msg.Data, &event))
		received <- event
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, publisher.IncidentsArchived(context.Background(), ArchiveEvent{
		Table:         "weather_alerts",
		ArchivedCount: 4,
		Reason:        "Auto-archived: Weather alerts expired more than 7 days ago",
		ActorID:       "admin-1",
	}))

	select {
	case got := <-received:
		require.Equal(t, "weather_alerts", got.Table)
		require.Equal(t, int64(4), got.ArchivedCount)
		require.False(t, got.OccurredAt.IsZero())
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for archive event")
	}
}
