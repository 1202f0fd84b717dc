package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/posfleet/printpool/internal/config"
	"github.com/posfleet/printpool/internal/printer"
)

type delivery struct {
	event     string
	signature string
	body      []byte
}

func startReceiver(t *testing.T, status int) (*httptest.Server, <-chan delivery) {
	t.Helper()
	out := make(chan delivery, 16)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		out <- delivery{
			event:     r.Header.Get("X-Webhook-Event"),
			signature: r.Header.Get("X-Webhook-Signature"),
			body:      body,
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, out
}

func newTestSender(t *testing.T, targets []config.WebhookTarget) *Sender {
	t.Helper()
	s := NewSender(config.WebhooksConfig{
		Targets:     targets,
		RetryCount:  2,
		RetryDelay:  10 * time.Millisecond,
		Timeout:     2 * time.Second,
		WorkerCount: 1,
		QueueSize:   16,
	}, zaptest.NewLogger(t))
	s.Start()
	t.Cleanup(s.Stop)
	return s
}

func waitDelivery(t *testing.T, ch <-chan delivery) delivery {
	t.Helper()
	select {
	case d := <-ch:
		return d
	case <-time.After(2 * time.Second):
		t.Fatal("webhook never delivered")
		return delivery{}
	}
}

func TestPrinterStatusChangedDelivery(t *testing.T) {
	srv, deliveries := startReceiver(t, http.StatusOK)
	s := newTestSender(t, []config.WebhookTarget{{URL: srv.URL, Secret: "shh"}})

	s.PrinterStatusChanged("p1", "Front Counter", printer.StatusIdle, printer.StatusBusy)

	d := waitDelivery(t, deliveries)
	assert.Equal(t, string(EventPrinterStatusChanged), d.event)

	var payload struct {
		Event string            `json:"event"`
		Data  PrinterStatusData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(d.body, &payload))
	assert.Equal(t, "p1", payload.Data.PrinterID)
	assert.Equal(t, "idle", payload.Data.PreviousStatus)
	assert.Equal(t, "busy", payload.Data.NewStatus)

	// The signature covers the data object with the shared secret.
	dataBytes, err := json.Marshal(payload.Data)
	require.NoError(t, err)
	mac := hmac.New(sha256.New, []byte("shh"))
	mac.Write(dataBytes)
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), d.signature)
}

func TestJobFinishedEvents(t *testing.T) {
	srv, deliveries := startReceiver(t, http.StatusOK)
	s := newTestSender(t, []config.WebhookTarget{{URL: srv.URL}})

	s.JobFinished("job-1", "p1", true, "")
	d := waitDelivery(t, deliveries)
	assert.Equal(t, string(EventJobCompleted), d.event)
	assert.Empty(t, d.signature)

	s.JobFinished("job-2", "", false, "connection failed")
	d = waitDelivery(t, deliveries)
	assert.Equal(t, string(EventJobFailed), d.event)

	var payload struct {
		Data JobEventData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(d.body, &payload))
	assert.Equal(t, "failed", payload.Data.Status)
	assert.Equal(t, "connection failed", payload.Data.ErrorMessage)
}

func TestRetryOnServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	s := newTestSender(t, []config.WebhookTarget{{URL: srv.URL}})
	s.JobFinished("job-1", "p1", true, "")

	assert.Eventually(t, func() bool { return calls.Load() == 2 },
		2*time.Second, 10*time.Millisecond)
}

func TestNoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	t.Cleanup(srv.Close)

	s := newTestSender(t, []config.WebhookTarget{{URL: srv.URL}})
	s.JobFinished("job-1", "p1", true, "")

	require.Eventually(t, func() bool { return calls.Load() == 1 },
		2*time.Second, 10*time.Millisecond)
	// Give a would-be retry time to show up.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFanOutToAllTargets(t *testing.T) {
	srv1, d1 := startReceiver(t, http.StatusOK)
	srv2, d2 := startReceiver(t, http.StatusOK)
	s := newTestSender(t, []config.WebhookTarget{{URL: srv1.URL}, {URL: srv2.URL}})

	s.PrinterStatusChanged("p1", "Fanned", printer.StatusBusy, printer.StatusIdle)

	waitDelivery(t, d1)
	waitDelivery(t, d2)
}
