package alert

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"spot-trade-bot-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWebhookDeliversEvents(t *testing.T) {
	var mu sync.Mutex
	var received []models.AlertEvent

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ev models.AlertEvent
		require.NoError(t, json.NewDecoder(r.Body).Decode(&ev))
		mu.Lock()
		received = append(received, ev)
		mu.Unlock()
	}))
	defer srv.Close()

	sink := NewWebhookSink(models.AlertConfig{WebhookURL: srv.URL, BufferSize: 8}, zap.NewNop().Sugar())
	sink.Emit(Event("trade_executed", "entry filled", "bought 1 SOL", map[string]string{"instanceId": "inst-1"}))
	sink.Emit(Event("circuit_breaker", "paused", "3 consecutive failures", nil))
	sink.Close()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 2)
	assert.Equal(t, "trade_executed", received[0].Type)
	assert.Equal(t, "inst-1", received[0].Metadata["instanceId"])
	assert.Equal(t, "circuit_breaker", received[1].Type)
	assert.False(t, received[0].Timestamp.IsZero())
}

func TestFullBufferDropsInsteadOfBlocking(t *testing.T) {
	blocked := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-blocked
	}))
	defer srv.Close()

	sink := NewWebhookSink(models.AlertConfig{WebhookURL: srv.URL, BufferSize: 1}, zap.NewNop().Sugar())

	// The first event occupies the delivery goroutine, the second fills the
	// buffer; everything after must drop without blocking this goroutine.
	for i := 0; i < 10; i++ {
		sink.Emit(Event("spam", "event", "", nil))
	}
	close(blocked)
	sink.Close()
}

func TestNopSink(t *testing.T) {
	var sink Sink = NopSink{}
	sink.Emit(Event("anything", "", "", nil))
	sink.Close()
}
