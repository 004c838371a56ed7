package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"portscan/logging"
)

const (
	DefaultConcurrency = 100
	DefaultTimeout     = time.Second
)

// ErrInvalidRequest is returned by Engine.Run for a request it cannot execute.
var ErrInvalidRequest = errors.New("invalid scan request")

// Request describes one scan against a single target.
type Request struct {
	Host        string
	Ports       PortSpec
	Timeout     time.Duration
	Concurrency int
}

// NewRequest builds a validated Request.
func NewRequest(host string, ports PortSpec, timeout time.Duration, concurrency int) (Request, error) {
	req := Request{
		Host:        strings.TrimSpace(host),
		Ports:       ports,
		Timeout:     timeout,
		Concurrency: concurrency,
	}
	if err := req.Validate(); err != nil {
		return Request{}, err
	}
	return req, nil
}

// Validate reports whether the request can be executed.
func (r Request) Validate() error {
	if r.Host == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidRequest)
	}
	if r.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive", ErrInvalidRequest)
	}
	if r.Concurrency <= 0 {
		return fmt.Errorf("%w: concurrency must be positive", ErrInvalidRequest)
	}
	return nil
}

// Engine fans a port list out over a fixed pool of workers.
type Engine struct {
	probe  ProbeFunc
	logger *slog.Logger

	// OnOutcome, when set, is called once per outcome as it is collected.
	// Calls are serialized on the goroutine running Run.
	OnOutcome func(Outcome)
}

// NewEngine creates an engine that probes with probe. A nil probe selects
// TCPProbe and a nil logger the shared logger.
func NewEngine(probe ProbeFunc, logger *slog.Logger) *Engine {
	if probe == nil {
		probe = TCPProbe
	}
	if logger == nil {
		logger = logging.Logger()
	}
	return &Engine{probe: probe, logger: logger}
}

type indexedOutcome struct {
	index   int
	outcome Outcome
}

// Run probes every port in req and returns once each one has an outcome.
// Per-port failures are recorded in the result, never returned. If ctx is
// canceled, ports not yet probed are recorded as Error with cause "canceled".
func (e *Engine) Run(ctx context.Context, req Request) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}

	result := Result{
		Host:     req.Host,
		Outcomes: make([]Outcome, len(req.Ports)),
		Started:  time.Now(),
	}
	if len(req.Ports) == 0 {
		return result, nil
	}

	workerCount := req.Concurrency
	if workerCount > len(req.Ports) {
		workerCount = len(req.Ports)
	}

	e.logger.Info("scan started",
		"host", req.Host,
		"ports", len(req.Ports),
		"workers", workerCount,
		"timeout_ms", req.Timeout.Milliseconds(),
	)

	// Every port is queued before any worker starts, so a closed, drained
	// channel means no work is left.
	jobs := make(chan int, len(req.Ports))
	for i := range req.Ports {
		jobs <- i
	}
	close(jobs)

	results := make(chan indexedOutcome, len(req.Ports))

	var wg sync.WaitGroup
	wg.Add(workerCount)
	for w := 0; w < workerCount; w++ {
		go e.worker(ctx, req, jobs, results, &wg)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	for r := range results {
		result.Outcomes[r.index] = r.outcome
		e.logger.Debug("port probed",
			"host", req.Host,
			"port", r.outcome.Port,
			"status", string(r.outcome.Status),
			"cause", r.outcome.Cause,
		)
		if e.OnOutcome != nil {
			e.OnOutcome(r.outcome)
		}
	}

	result.Elapsed = time.Since(result.Started)
	counts := result.Counts()
	e.logger.Info("scan finished",
		"host", req.Host,
		"open", counts.Open,
		"closed", counts.Closed,
		"error", counts.Error,
		"elapsed_ms", result.Elapsed.Milliseconds(),
	)
	return result, nil
}

func (e *Engine) worker(ctx context.Context, req Request, jobs <-chan int, results chan<- indexedOutcome, wg *sync.WaitGroup) {
	defer wg.Done()
	for idx := range jobs {
		port := req.Ports[idx]

		var outcome Outcome
		if ctx.Err() != nil {
			outcome = Outcome{Port: port, Status: StatusError, Cause: CauseCanceled}
		} else {
			outcome = e.probe(ctx, req.Host, port, req.Timeout)
			outcome.Port = port
		}

		results <- indexedOutcome{index: idx, outcome: outcome}
	}
}
