// Package alert delivers structured events to an external sink. Delivery is
// fire-and-forget: emitting never blocks a decision cycle, and a full buffer
// drops the event with a log line instead of backpressuring the pipeline.
package alert

import (
	"bytes"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"spot-trade-bot-go/internal/models"

	"go.uber.org/zap"
)

// Sink receives alert events.
type Sink interface {
	Emit(event models.AlertEvent)
	Close()
}

// NopSink discards every event. Used when no webhook is configured.
type NopSink struct{}

func (NopSink) Emit(models.AlertEvent) {}
func (NopSink) Close()                 {}

// WebhookSink posts events as JSON to a webhook URL from a single background
// goroutine fed by a bounded buffer.
type WebhookSink struct {
	url    string
	events chan models.AlertEvent
	client *http.Client
	log    *zap.SugaredLogger

	closeOnce sync.Once
	done      chan struct{}
}

// NewWebhookSink starts the delivery goroutine.
func NewWebhookSink(cfg models.AlertConfig, log *zap.SugaredLogger) *WebhookSink {
	s := &WebhookSink{
		url:    cfg.WebhookURL,
		events: make(chan models.AlertEvent, cfg.BufferSize),
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

// Emit queues the event, dropping it when the buffer is full.
func (s *WebhookSink) Emit(event models.AlertEvent) {
	select {
	case s.events <- event:
	default:
		s.log.Warnw("alert buffer full, event dropped",
			"type", event.Type, "title", event.Title)
	}
}

// Close drains queued events and stops the delivery goroutine.
func (s *WebhookSink) Close() {
	s.closeOnce.Do(func() {
		close(s.events)
		<-s.done
	})
}

func (s *WebhookSink) run() {
	defer close(s.done)
	for event := range s.events {
		s.post(event)
	}
}

func (s *WebhookSink) post(event models.AlertEvent) {
	body, err := json.Marshal(event)
	if err != nil {
		s.log.Errorw("alert marshal failed", "err", err)
		return
	}
	resp, err := s.client.Post(s.url, "application/json", bytes.NewReader(body))
	if err != nil {
		s.log.Warnw("alert delivery failed", "err", err, "type", event.Type)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		s.log.Warnw("alert webhook returned non-success", "status", resp.StatusCode)
	}
}

// Event builds a timestamped alert event.
func Event(eventType, title, message string, metadata map[string]string) models.AlertEvent {
	return models.AlertEvent{
		Type:      eventType,
		Title:     title,
		Message:   message,
		Metadata:  metadata,
		Timestamp: time.Now().UTC(),
	}
}
