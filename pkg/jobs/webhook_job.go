package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/docsync/core/pkg/logger"
)

// WebhookJob triggers a sync pipeline over HTTP. The pipeline is expected to
// answer with {"success": bool, "message": string}. Transport failures and
// non-2xx responses trip a circuit breaker so a dead endpoint fails fast.
type WebhookJob struct {
	name    string
	url     string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *logger.Logger
}

// WebhookConfig configures a WebhookJob
type WebhookConfig struct {
	Name string
	URL  string
	// Timeout bounds one pipeline call. Zero means no timeout.
	Timeout time.Duration
	// FailureThreshold is the number of consecutive failures that opens the breaker.
	FailureThreshold uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
}

type webhookRequest struct {
	Job         string    `json:"job"`
	RequestedAt time.Time `json:"requested_at"`
}

// NewWebhookJob creates a job that POSTs to cfg.URL
func NewWebhookJob(cfg WebhookConfig, log *logger.Logger) *WebhookJob {
	if log == nil {
		log = logger.New("webhook-job")
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 5 * time.Minute
	}

	jobLogger := log.With().Str("job_name", cfg.Name).Logger()
	l := &logger.Logger{Logger: &jobLogger}

	threshold := cfg.FailureThreshold
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			l.Warn().
				Str("action", "circuit_state_change").
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Pipeline circuit breaker changed state")
		},
	})

	return &WebhookJob{
		name:    cfg.Name,
		url:     cfg.URL,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: breaker,
		logger:  l,
	}
}

func (w *WebhookJob) Name() string {
	return w.name
}

// Execute calls the pipeline endpoint once.
func (w *WebhookJob) Execute(ctx context.Context) (Result, error) {
	res, err := w.breaker.Execute(func() (interface{}, error) {
		return w.call(ctx)
	})
	if err != nil {
		return Result{}, fmt.Errorf("pipeline %s: %w", w.name, err)
	}
	return res.(Result), nil
}

// log prefers the run logger carried by ctx.
func (w *WebhookJob) log(ctx context.Context) *logger.Logger {
	if l, ok := ctx.Value(logger.LoggerKey).(*logger.Logger); ok {
		return l
	}
	return w.logger
}

// BreakerState reports the circuit breaker state, e.g. "closed" or "open".
func (w *WebhookJob) BreakerState() string {
	return w.breaker.State().String()
}

func (w *WebhookJob) call(ctx context.Context) (Result, error) {
	start := time.Now()

	body, err := json.Marshal(webhookRequest{Job: w.name, RequestedAt: start})
	if err != nil {
		return Result{}, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		w.log(ctx).LogAPICall(http.MethodPost, w.url, 0, time.Since(start), err)
		return Result{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		err = fmt.Errorf("failed to read response: %w", err)
	} else if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err = fmt.Errorf("pipeline returned status %d", resp.StatusCode)
	}
	w.log(ctx).LogAPICall(http.MethodPost, w.url, resp.StatusCode, time.Since(start), err)
	if err != nil {
		return Result{}, err
	}

	var result Result
	if len(bytes.TrimSpace(payload)) == 0 {
		return Result{Success: true, Message: fmt.Sprintf("pipeline returned status %d", resp.StatusCode)}, nil
	}
	if err := json.Unmarshal(payload, &result); err != nil {
		return Result{}, fmt.Errorf("failed to decode pipeline response: %w", err)
	}
	return result, nil
}
