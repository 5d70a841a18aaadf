package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	pipeline "media_pipeline/internal/pipeline/domain"
	"media_pipeline/pkg/config"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookSink(t *testing.T) {
	ev, _ := successEvent(t)

	var got pipeline.NotificationEvent
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := &WebhookSink{URL: srv.URL, Timeout: time.Second}
	require.NoError(t, s.Deliver(context.Background(), ev))
	assert.Equal(t, ev, got)
}

func TestWebhookSink_Non2xx(t *testing.T) {
	ev, _ := successEvent(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := (&WebhookSink{URL: srv.URL}).Deliver(context.Background(), ev)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestWebhookSink_Unreachable(t *testing.T) {
	ev, _ := successEvent(t)
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	assert.Error(t, (&WebhookSink{URL: url, Timeout: time.Second}).Deliver(context.Background(), ev))
}

type fakeKafkaWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeKafkaWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaSink(t *testing.T) {
	ev, _ := successEvent(t)
	w := &fakeKafkaWriter{}
	s := NewKafkaSink(w)

	require.NoError(t, s.Deliver(context.Background(), ev))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, []byte("alice"), w.msgs[0].Key)

	var got pipeline.NotificationEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, ev, got)

	w.err = errors.New("leader not available")
	assert.Error(t, s.Deliver(context.Background(), ev))

	require.NoError(t, s.Close())
	assert.True(t, w.closed)
}

type fakeNATS struct {
	subject  string
	data     []byte
	flushErr error
	closed   bool
}

func (n *fakeNATS) Publish(subj string, data []byte) error {
	n.subject, n.data = subj, data
	return nil
}

func (n *fakeNATS) FlushWithContext(ctx context.Context) error { return n.flushErr }

func (n *fakeNATS) Close() { n.closed = true }

func TestNATSSink(t *testing.T) {
	ev, _ := successEvent(t)
	nc := &fakeNATS{}
	s := NewNATSSink(nc, "media.notifications")

	require.NoError(t, s.Deliver(context.Background(), ev))
	assert.Equal(t, "media.notifications", nc.subject)
	assert.Contains(t, string(nc.data), ev.EventID)

	nc.flushErr = errors.New("nats: connection closed")
	assert.Error(t, s.Deliver(context.Background(), ev))
}

func TestMultiSink(t *testing.T) {
	ev, _ := successEvent(t)

	ok := &recordSink{}
	bad := &recordSink{Err: errors.New("boom")}
	m := NewMultiSink(LogSink{}, ok, bad)
	assert.Equal(t, "multi(log,record,record)", m.Name())

	err := m.Deliver(context.Background(), ev)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Len(t, ok.Delivered(), 1, "a failing member does not stop the others")

	w := &fakeKafkaWriter{}
	require.NoError(t, NewMultiSink(ok, NewKafkaSink(w)).Close())
	assert.True(t, w.closed)
}

func TestNewSinks(t *testing.T) {
	ctx := context.Background()

	m, err := NewSinks(ctx, config.SinkConfig{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "multi(log)", m.Name())

	hub := NewHub()
	m, err = NewSinks(ctx, config.SinkConfig{
		Enabled: []string{SinkLog, SinkWebsocket, SinkWebhook},
		Webhook: config.WebhookConfig{URL: "http://hooks.local/notify"},
	}, hub)
	require.NoError(t, err)
	assert.Equal(t, "multi(log,websocket,webhook)", m.Name())

	_, err = NewSinks(ctx, config.SinkConfig{Enabled: []string{"sms"}}, nil)
	assert.Error(t, err)

	_, err = NewSinks(ctx, config.SinkConfig{Enabled: []string{SinkWebhook}}, nil)
	assert.Error(t, err)

	_, err = NewSinks(ctx, config.SinkConfig{Enabled: []string{SinkWebsocket}}, nil)
	assert.Error(t, err)
}
