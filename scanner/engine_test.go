package scanner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingProbe is a deterministic fake that remembers every port it saw.
type recordingProbe struct {
	mu       sync.Mutex
	calls    map[int]int
	delay    time.Duration
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func newRecordingProbe(delay time.Duration) *recordingProbe {
	return &recordingProbe{calls: make(map[int]int), delay: delay}
}

func (p *recordingProbe) probe(ctx context.Context, host string, port int, timeout time.Duration) Outcome {
	n := p.inFlight.Add(1)
	defer p.inFlight.Add(-1)
	for {
		peak := p.maxSeen.Load()
		if n <= peak || p.maxSeen.CompareAndSwap(peak, n) {
			break
		}
	}

	p.mu.Lock()
	p.calls[port]++
	p.mu.Unlock()

	if p.delay > 0 {
		time.Sleep(p.delay)
	}

	switch {
	case port%2 == 0:
		return Outcome{Port: port, Status: StatusOpen, Banner: []byte(fmt.Sprintf("svc-%d", port))}
	case port%3 == 0:
		return Outcome{Port: port, Status: StatusClosed}
	default:
		return Outcome{Port: port, Status: StatusError, Cause: CauseTimeout}
	}
}

func mustRequest(t *testing.T, expr string, concurrency int) Request {
	t.Helper()
	ports, err := ResolvePorts(expr)
	if err != nil {
		t.Fatalf("resolve %q: %v", expr, err)
	}
	req, err := NewRequest("192.0.2.1", ports, 50*time.Millisecond, concurrency)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	return req
}

func TestEngineRun_EveryPortExactlyOnce(t *testing.T) {
	fake := newRecordingProbe(0)
	engine := NewEngine(fake.probe, discardLogger())
	req := mustRequest(t, "1-1024", 100)

	result, err := engine.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(result.Outcomes) != len(req.Ports) {
		t.Fatalf("got %d outcomes want %d", len(result.Outcomes), len(req.Ports))
	}
	for i, o := range result.Outcomes {
		if o.Port != req.Ports[i] {
			t.Fatalf("outcome %d has port %d want %d", i, o.Port, req.Ports[i])
		}
	}
	if len(fake.calls) != len(req.Ports) {
		t.Fatalf("probe saw %d distinct ports want %d", len(fake.calls), len(req.Ports))
	}
	for port, n := range fake.calls {
		if n != 1 {
			t.Fatalf("port %d probed %d times", port, n)
		}
	}
}

func TestEngineRun_ConcurrencyDoesNotChangeResults(t *testing.T) {
	req1 := mustRequest(t, "1-300", 1)
	req100 := mustRequest(t, "1-300", 100)

	serial, err := NewEngine(newRecordingProbe(0).probe, discardLogger()).Run(context.Background(), req1)
	if err != nil {
		t.Fatalf("run serial: %v", err)
	}
	parallel, err := NewEngine(newRecordingProbe(0).probe, discardLogger()).Run(context.Background(), req100)
	if err != nil {
		t.Fatalf("run parallel: %v", err)
	}

	asMap := func(r Result) map[int]Outcome {
		m := make(map[int]Outcome, len(r.Outcomes))
		for _, o := range r.Outcomes {
			m[o.Port] = o
		}
		return m
	}
	if !reflect.DeepEqual(asMap(serial), asMap(parallel)) {
		t.Fatalf("results differ between concurrency 1 and 100")
	}
	if serial.Counts() != parallel.Counts() {
		t.Fatalf("counts differ: %+v vs %+v", serial.Counts(), parallel.Counts())
	}
}

func TestEngineRun_RespectsWorkerBound(t *testing.T) {
	fake := newRecordingProbe(5 * time.Millisecond)
	engine := NewEngine(fake.probe, discardLogger())

	if _, err := engine.Run(context.Background(), mustRequest(t, "1-60", 4)); err != nil {
		t.Fatalf("run: %v", err)
	}
	if peak := fake.maxSeen.Load(); peak > 4 {
		t.Fatalf("saw %d concurrent probes, limit 4", peak)
	}
}

func TestEngineRun_EmptyPorts(t *testing.T) {
	var called atomic.Bool
	probe := func(ctx context.Context, host string, port int, timeout time.Duration) Outcome {
		called.Store(true)
		return Outcome{}
	}
	req, err := NewRequest("192.0.2.1", PortSpec{}, time.Second, 10)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}

	result, err := NewEngine(probe, discardLogger()).Run(context.Background(), req)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.Outcomes) != 0 {
		t.Fatalf("expected empty result, got %d outcomes", len(result.Outcomes))
	}
	if called.Load() {
		t.Fatalf("probe must not be called for an empty port list")
	}
}

func TestEngineRun_InvalidRequest(t *testing.T) {
	engine := NewEngine(newRecordingProbe(0).probe, discardLogger())
	cases := map[string]Request{
		"no host":        {Ports: PortSpec{80}, Timeout: time.Second, Concurrency: 1},
		"zero timeout":   {Host: "h", Ports: PortSpec{80}, Concurrency: 1},
		"no concurrency": {Host: "h", Ports: PortSpec{80}, Timeout: time.Second},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := engine.Run(context.Background(), req)
			if !errors.Is(err, ErrInvalidRequest) {
				t.Fatalf("expected ErrInvalidRequest, got %v", err)
			}
		})
	}
}

func TestEngineRun_PortFailuresAreIsolated(t *testing.T) {
	probe := func(ctx context.Context, host string, port int, timeout time.Duration) Outcome {
		if port == 2 {
			return Outcome{Status: StatusError, Cause: "boom"}
		}
		return Outcome{Status: StatusOpen}
	}
	result, err := NewEngine(probe, discardLogger()).Run(context.Background(), mustRequest(t, "1-3", 3))
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	want := []Outcome{
		{Port: 1, Status: StatusOpen},
		{Port: 2, Status: StatusError, Cause: "boom"},
		{Port: 3, Status: StatusOpen},
	}
	if !reflect.DeepEqual(result.Outcomes, want) {
		t.Fatalf("got %+v want %+v", result.Outcomes, want)
	}
}

func TestEngineRun_OnOutcomeSeesEveryPort(t *testing.T) {
	engine := NewEngine(newRecordingProbe(0).probe, discardLogger())
	seen := make(map[int]int)
	engine.OnOutcome = func(o Outcome) {
		seen[o.Port]++
	}

	req := mustRequest(t, "100-199", 16)
	if _, err := engine.Run(context.Background(), req); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(seen) != len(req.Ports) {
		t.Fatalf("callback saw %d ports want %d", len(seen), len(req.Ports))
	}
	for port, n := range seen {
		if n != 1 {
			t.Fatalf("callback saw port %d %d times", port, n)
		}
	}
}

func TestEngineRun_CancellationAccountsForEveryPort(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var probed atomic.Int32
	probe := func(ctx context.Context, host string, port int, timeout time.Duration) Outcome {
		if probed.Add(1) == 5 {
			cancel()
		}
		return Outcome{Status: StatusClosed}
	}

	req := mustRequest(t, "1-500", 1)
	result, err := NewEngine(probe, discardLogger()).Run(ctx, req)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.Outcomes) != len(req.Ports) {
		t.Fatalf("got %d outcomes want %d", len(result.Outcomes), len(req.Ports))
	}

	canceled := 0
	for i, o := range result.Outcomes {
		if o.Port != req.Ports[i] {
			t.Fatalf("outcome %d has port %d want %d", i, o.Port, req.Ports[i])
		}
		if o.Status == StatusError && o.Cause == CauseCanceled {
			canceled++
		}
	}
	if canceled != len(req.Ports)-5 {
		t.Fatalf("got %d canceled outcomes want %d", canceled, len(req.Ports)-5)
	}
}

func TestEngineRun_UnresolvableHost(t *testing.T) {
	if testing.Short() {
		t.Skip("performs real DNS lookups")
	}
	ports, err := ResolvePorts("1-1024")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	req, err := NewRequest("portscan-test.invalid", ports, 200*time.Millisecond, 100)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}

	start := time.Now()
	result, err := NewEngine(TCPProbe, discardLogger()).Run(context.Background(), req)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.Outcomes) != 1024 {
		t.Fatalf("got %d outcomes want 1024", len(result.Outcomes))
	}
	for _, o := range result.Outcomes {
		if o.Status != StatusError {
			t.Fatalf("port %d: got %s want Error", o.Port, o.Status)
		}
	}
	if elapsed := time.Since(start); elapsed > 15*time.Second {
		t.Fatalf("scan took %v", elapsed)
	}
}

func TestResultLookupAndCounts(t *testing.T) {
	r := Result{Outcomes: []Outcome{
		{Port: 22, Status: StatusOpen, Banner: []byte("SSH-2.0")},
		{Port: 23, Status: StatusClosed},
		{Port: 25, Status: StatusError, Cause: CauseTimeout},
	}}

	o, ok := r.Lookup(22)
	if !ok || string(o.Banner) != "SSH-2.0" {
		t.Fatalf("lookup 22: got %+v ok=%v", o, ok)
	}
	if _, ok := r.Lookup(80); ok {
		t.Fatalf("lookup 80: expected miss")
	}
	if got, want := r.Counts(), (Counts{Open: 1, Closed: 1, Error: 1}); got != want {
		t.Fatalf("counts: got %+v want %+v", got, want)
	}
}
