package webhook

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/posfleet/printpool/internal/config"
	"github.com/posfleet/printpool/internal/printer"
)

type Event string

const (
	EventPrinterStatusChanged Event = "printer_status_changed"
	EventJobCompleted         Event = "job_completed"
	EventJobFailed            Event = "job_failed"
)

type Payload struct {
	Event     string      `json:"event"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
	Signature string      `json:"signature,omitempty"`
}

type PrinterStatusData struct {
	PrinterID      string    `json:"printer_id"`
	PrinterName    string    `json:"printer_name"`
	PreviousStatus string    `json:"previous_status"`
	NewStatus      string    `json:"new_status"`
	Timestamp      time.Time `json:"timestamp"`
}

type JobEventData struct {
	JobID        string `json:"job_id"`
	PrinterID    string `json:"printer_id,omitempty"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
}

type task struct {
	target  config.WebhookTarget
	event   Event
	payload *Payload
	attempt int
}

// Sender delivers pool and dispatcher events to the configured URLs. Delivery
// is asynchronous with a bounded queue; the pool's correctness never depends
// on it.
type Sender struct {
	targets    []config.WebhookTarget
	httpClient *http.Client
	retryCount int
	retryDelay time.Duration
	workers    int
	queue      chan *task
	stopCh     chan struct{}
	wg         sync.WaitGroup
	log        *zap.Logger
}

func NewSender(cfg config.WebhooksConfig, log *zap.Logger) *Sender {
	if cfg.RetryCount <= 0 {
		cfg.RetryCount = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 3
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Sender{
		targets: cfg.Targets,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		retryCount: cfg.RetryCount,
		retryDelay: cfg.RetryDelay,
		workers:    cfg.WorkerCount,
		queue:      make(chan *task, cfg.QueueSize),
		stopCh:     make(chan struct{}),
		log:        log,
	}
}

func (s *Sender) Start() {
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
}

func (s *Sender) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

// PrinterStatusChanged implements core.EventSink.
func (s *Sender) PrinterStatusChanged(printerID, name string, oldStatus, newStatus printer.Status) {
	s.enqueue(EventPrinterStatusChanged, &PrinterStatusData{
		PrinterID:      printerID,
		PrinterName:    name,
		PreviousStatus: string(oldStatus),
		NewStatus:      string(newStatus),
		Timestamp:      time.Now(),
	})
}

// JobFinished implements core.EventSink.
func (s *Sender) JobFinished(jobID, printerID string, success bool, errMsg string) {
	if success {
		s.enqueue(EventJobCompleted, &JobEventData{
			JobID:     jobID,
			PrinterID: printerID,
			Status:    "completed",
		})
		return
	}
	s.enqueue(EventJobFailed, &JobEventData{
		JobID:        jobID,
		PrinterID:    printerID,
		Status:       "failed",
		ErrorMessage: errMsg,
	})
}

func (s *Sender) enqueue(event Event, data interface{}) {
	for _, target := range s.targets {
		t := &task{
			target: target,
			event:  event,
			payload: &Payload{
				Event:     string(event),
				Timestamp: time.Now(),
				Data:      data,
			},
		}

		select {
		case s.queue <- t:
		default:
			s.log.Warn("webhook queue full, dropping event",
				zap.String("event", string(event)),
				zap.String("url", target.URL))
		}
	}
}

func (s *Sender) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case <-s.stopCh:
			return
		case t := <-s.queue:
			if err := s.sendWithRetry(t); err != nil {
				s.log.Warn("webhook delivery failed",
					zap.Int("worker", id),
					zap.String("event", string(t.event)),
					zap.String("url", t.target.URL),
					zap.Int("attempts", t.attempt),
					zap.Error(err))
			}
		}
	}
}

func (s *Sender) sendWithRetry(t *task) error {
	var lastErr error
	for t.attempt < s.retryCount {
		t.attempt++

		err := s.sendRequest(t.target, t.payload)
		if err == nil {
			return nil
		}

		lastErr = err

		if isClientError(err) {
			return err
		}

		if t.attempt < s.retryCount {
			backoff := s.retryDelay * time.Duration(1<<(t.attempt-1))
			select {
			case <-s.stopCh:
				return fmt.Errorf("shutdown requested")
			case <-time.After(backoff):
			}
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (s *Sender) sendRequest(target config.WebhookTarget, payload *Payload) error {
	dataBytes, err := json.Marshal(payload.Data)
	if err != nil {
		return fmt.Errorf("marshal data: %w", err)
	}

	if target.Secret != "" {
		payload.Signature = signPayload(dataBytes, target.Secret)
	}

	fullPayload, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, target.URL, bytes.NewReader(fullPayload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", payload.Signature)
	req.Header.Set("X-Webhook-Event", payload.Event)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("http error: %d", resp.StatusCode)
	}

	return nil
}

func signPayload(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

func isClientError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "http error: 4")
}
