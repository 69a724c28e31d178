package tapsim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/tapscore/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0o750
	reportPermission    = 0o600
)

// Run executes the scenario and, if configured, the concurrent burst.
// It returns ErrScenarioFailed when any response code was unexpected.
func Run(ctx context.Context, cfg *Config) (*Report, error) {
	if err := normalize(cfg); err != nil {
		return nil, err
	}
	log := logger.Named("tapsim")
	client := newHTTPClient(cfg.BaseURL, cfg.Timeout)

	report := &Report{
		RunID:     uuid.NewString(),
		BaseURL:   cfg.BaseURL,
		StartTime: time.Now(),
	}
	log = log.With(logger.String("run_id", report.RunID))
	log.Info(ctx, "starting tap scenario",
		logger.String("baseURL", cfg.BaseURL),
		logger.Duration("wait", cfg.Wait),
		logger.Int("burst", cfg.Burst),
	)

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, client, log); err != nil {
		return nil, err
	}

	// Step 2: Replay the scenario
	for i, step := range Scenario(cfg.UIDs[0], cfg.UIDs[1], cfg) {
		if step.WaitBefore > 0 {
			log.Info(ctx, "waiting for cooldown", logger.Duration("wait", step.WaitBefore))
			if err := cfg.Sleep(ctx, step.WaitBefore); err != nil {
				return report, err
			}
		}
		res, err := runStep(ctx, client, report.RunID, i, step)
		if err != nil {
			return report, fmt.Errorf("step %q: %w", step.Name, err)
		}
		report.Steps = append(report.Steps, res)

		fields := []logger.Field{
			logger.String("step", step.Name),
			logger.Int("status", res.Status),
			logger.Bool("ok", res.OK),
			logger.Duration("latency", res.Latency),
		}
		if cfg.Verbose {
			fields = append(fields, logger.String("body", res.Body))
		}
		if res.OK {
			log.Info(ctx, "step passed", fields...)
		} else {
			log.Error(ctx, "step failed", append(fields, logger.Any("expect", step.Expect))...)
		}
	}

	// Step 3: Concurrent burst
	var burstErr error
	if cfg.Burst > 0 {
		if err := cfg.Sleep(ctx, cfg.Wait); err != nil {
			return report, err
		}
		report.Burst = runBurst(ctx, client, report.RunID, cfg.Burst)
		log.Info(ctx, "burst finished",
			logger.Int("sent", report.Burst.Sent),
			logger.Int("accepted", report.Burst.Accepted),
			logger.Int("rateLimited", report.Burst.RateLimited),
			logger.Int("failed", report.Burst.Failed),
		)
		if report.Burst.Accepted != 1 || report.Burst.Failed != 0 {
			burstErr = fmt.Errorf("%w: burst accepted %d taps, want exactly 1", ErrScenarioFailed, report.Burst.Accepted)
		}
	}

	report.EndTime = time.Now()
	report.Duration = report.EndTime.Sub(report.StartTime)

	if cfg.OutputFile != "" {
		if err := saveReport(cfg.OutputFile, report); err != nil {
			log.Warn(ctx, "failed to save report", logger.Error(err))
		} else {
			log.Info(ctx, "report saved", logger.String("filename", cfg.OutputFile))
		}
	}

	failed := report.Failed()
	log.Info(ctx, "final statistics",
		logger.Int("steps", len(report.Steps)),
		logger.Int("failed", len(failed)),
		logger.Duration("duration", report.Duration),
	)
	var stepErr error
	if len(failed) > 0 {
		stepErr = fmt.Errorf("%w: %d of %d steps returned unexpected status", ErrScenarioFailed, len(failed), len(report.Steps))
	}
	return report, errors.Join(stepErr, burstErr)
}

func normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: nil config", ErrInvalidConfig)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Wait <= 0 {
		cfg.Wait = DefaultWait
	}
	if len(cfg.UIDs) == 0 {
		cfg.UIDs = DefaultUIDs
	}
	if len(cfg.UIDs) != 2 || cfg.UIDs[0] == "" || cfg.UIDs[1] == "" || cfg.UIDs[0] == cfg.UIDs[1] {
		return fmt.Errorf("%w: need two distinct non-empty uids, got %q", ErrInvalidConfig, cfg.UIDs)
	}
	if cfg.Burst < 0 {
		return fmt.Errorf("%w: burst must not be negative", ErrInvalidConfig)
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleep
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, client *HTTPClient, log logger.Logger) error {
	log.Info(ctx, "checking service health")
	resp, _, err := client.do(ctx, http.MethodGet, "/healthz", "", nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrServiceDown, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrServiceDown, resp.StatusCode)
	}
	log.Info(ctx, "service is healthy")
	return nil
}

func runStep(ctx context.Context, client *HTTPClient, runID string, i int, step Step) (StepResult, error) {
	reqID := fmt.Sprintf("%s-%d", runID, i)
	var body any
	if step.Body != nil {
		body = step.Body
	}
	start := time.Now()
	resp, data, err := client.do(ctx, step.Method, step.Path, reqID, body)
	if err != nil {
		return StepResult{}, err
	}
	return StepResult{
		Step:       step,
		RequestID:  reqID,
		Status:     resp.StatusCode,
		RetryAfter: resp.Header.Get("Retry-After"),
		Body:       string(data),
		Latency:    time.Since(start),
		OK:         expected(step, resp.StatusCode),
	}, nil
}

// runBurst fires n taps of distinct uids at once.
func runBurst(ctx context.Context, client *HTTPClient, runID string, n int) *BurstResult {
	res := &BurstResult{Sent: n}
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			uid := fmt.Sprintf("burst-%s-%d", runID[:8], i)
			resp, _, err := client.do(ctx, http.MethodPost, "/tap", fmt.Sprintf("%s-burst-%d", runID, i), &TapRequest{UID: uid})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				res.Failed++
			case resp.StatusCode == http.StatusCreated:
				res.Accepted++
			case resp.StatusCode == http.StatusTooManyRequests:
				res.RateLimited++
			default:
				res.Failed++
			}
		}(i)
	}
	wg.Wait()
	return res
}

// saveReport writes the report as indented JSON.
func saveReport(filename string, report *Report) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(filename, data, reportPermission); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
