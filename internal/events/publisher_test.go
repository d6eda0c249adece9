package events

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prodigy/pkg/errors"
)

type published struct {
	topic string
	key   string
	body  []byte
}

type fakeProducer struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (f *fakeProducer) Publish(_ context.Context, topic, key string, event interface{}) error {
	if f.err != nil {
		return f.err
	}
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.msgs = append(f.msgs, published{topic: topic, key: key, body: body})
	f.mu.Unlock()
	return nil
}

func TestKafkaPublisherRoutesByType(t *testing.T) {
	producer := &fakeProducer{}
	pub := NewKafkaPublisher(producer, Topics{Runs: "custom.runs"})
	runID := uuid.New()

	require.NoError(t, pub.PublishStage(context.Background(), StageEvent{
		BaseEvent:  NewBaseEvent(TypeStageCompleted, "coordinator", runID),
		Stage:      StageMarket,
		DurationMS: 1200,
		Scores:     map[string]float64{"market": 7.5},
	}))
	require.NoError(t, pub.PublishRun(context.Background(), RunEvent{
		BaseEvent:    NewBaseEvent(TypeRunCompleted, "coordinator", runID),
		IdeaName:     "Lint bot",
		OverallScore: 6.8,
	}))

	require.Len(t, producer.msgs, 2)
	assert.Equal(t, "counsel.stages", producer.msgs[0].topic)
	assert.Equal(t, "custom.runs", producer.msgs[1].topic)
	assert.Equal(t, runID.String(), producer.msgs[0].key)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(producer.msgs[0].body, &decoded))
	assert.Equal(t, "market", decoded["stage"])
	assert.Equal(t, TypeStageCompleted, decoded["type"])
	assert.Equal(t, runID.String(), decoded["run_id"])
}

func TestKafkaPublisherWrapsErrors(t *testing.T) {
	pub := NewKafkaPublisher(&fakeProducer{err: errors.ErrUnavailable}, Topics{})

	err := pub.PublishRun(context.Background(), RunEvent{BaseEvent: NewBaseEvent(TypeRunFailed, "coordinator", uuid.New())})
	assert.True(t, errors.Is(err, errors.ErrUnavailable))
}
