// Package integrity runs periodic health checks over the kernel: manifest
// coherence, label dissonance, field activity, telos alignment, resource
// pressure, and a bus round-trip self-check. Checks are independent; one
// failing or panicking check scores zero and never aborts the batch.
package integrity

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/akasha-systems/akasha/internal/bus"
	"github.com/akasha-systems/akasha/internal/field"
	"github.com/akasha-systems/akasha/internal/log"
	"github.com/akasha-systems/akasha/internal/manifest"
)

// EventLowIntegrity is published when a report's overall score drops below
// the threshold.
const EventLowIntegrity = "integrity:low"

// SelfCheckRequest is the request type used for the bus round-trip check.
const SelfCheckRequest = "integrity:selfcheck:ping"

// Defaults, overridable through options.
const (
	DefaultThreshold        = 0.7
	DefaultInterval         = 60 * time.Second
	DefaultResourceBudgetMB = 2048.0
	DefaultStagnantAfter    = 10 * time.Minute
	DefaultCongestionWindow = time.Minute
)

var tracer = otel.Tracer("akasha/integrity")

// CheckResult is one check's verdict.
type CheckResult struct {
	Name    string
	Passed  bool
	Score   float64
	Weight  float64
	Details map[string]any
}

// CheckFunc is a single integrity check. Implementations read shared state
// but never mutate it.
type CheckFunc func(ctx context.Context) CheckResult

// Report is the outcome of one integrity run. OverallScore is the
// weight-averaged score across all checks.
type Report struct {
	OverallScore float64
	Checks       []CheckResult
	Timestamp    time.Time
}

// ManifestSource provides the active manifests under scrutiny.
// Implemented by internal/registry.
type ManifestSource interface {
	Manifests() []*manifest.Manifest
}

// GoalCatalog provides the known telos goals.
// Implemented by internal/telos.
type GoalCatalog interface {
	All() []*manifest.Telos
}

// ConstraintSink receives the resource-constraint signal.
// Implemented by the lifecycle manager.
type ConstraintSink interface {
	SetResourceConstrained(constrained bool)
}

// Service schedules and runs the fixed check set.
type Service struct {
	source ManifestSource
	goals  GoalCatalog
	f      *field.Field
	b      *bus.Bus
	sink   ConstraintSink

	threshold        float64
	interval         time.Duration
	budgetMB         float64
	stagnantAfter    time.Duration
	congestionWindow time.Duration

	stopSelfCheck func()
}

// Option configures a Service.
type Option func(*Service)

// WithThreshold overrides the low-integrity threshold.
func WithThreshold(t float64) Option {
	return func(s *Service) {
		if t > 0 {
			s.threshold = t
		}
	}
}

// WithInterval overrides the periodic run interval.
func WithInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithResourceBudgetMB overrides the aggregate footprint budget.
func WithResourceBudgetMB(mb float64) Option {
	return func(s *Service) {
		if mb > 0 {
			s.budgetMB = mb
		}
	}
}

// WithStagnantAfter overrides how long field silence counts as stagnation.
func WithStagnantAfter(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.stagnantAfter = d
		}
	}
}

// WithCongestionWindow overrides the window within which a complete
// history-ring turnover counts as congestion.
func WithCongestionWindow(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.congestionWindow = d
		}
	}
}

// NewService wires the service to its inputs and registers the self-check
// responder on the bus. sink may be nil.
func NewService(source ManifestSource, goals GoalCatalog, f *field.Field, b *bus.Bus, sink ConstraintSink, opts ...Option) *Service {
	s := &Service{
		source:        source,
		goals:         goals,
		f:             f,
		b:             b,
		sink:          sink,
		threshold:        DefaultThreshold,
		interval:         DefaultInterval,
		budgetMB:         DefaultResourceBudgetMB,
		stagnantAfter:    DefaultStagnantAfter,
		congestionWindow: DefaultCongestionWindow,
	}
	for _, opt := range opts {
		opt(s)
	}
	if b != nil {
		s.stopSelfCheck = b.HandleRequests(SelfCheckRequest, func(payload, _ map[string]any) (map[string]any, error) {
			return map[string]any{"pong": true}, nil
		})
	}
	return s
}

// Close detaches the self-check responder.
func (s *Service) Close() {
	if s.stopSelfCheck != nil {
		s.stopSelfCheck()
		s.stopSelfCheck = nil
	}
}

// Start runs the check batch on the configured interval until ctx is
// cancelled. It returns immediately; the loop runs on its own goroutine.
func (s *Service) Start(ctx context.Context) {
	log.SafeGo("integrity-loop", func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Run(ctx)
			}
		}
	})
}

// Run executes every check in parallel and folds the results into a
// Report, applying the threshold reaction before returning.
func (s *Service) Run(ctx context.Context) Report {
	ctx, span := tracer.Start(ctx, "integrity.run")
	defer span.End()

	checks := s.checks()
	results := make([]CheckResult, len(checks))

	g, gctx := errgroup.WithContext(ctx)
	for i, check := range checks {
		g.Go(func() error {
			results[i] = runGuarded(gctx, check)
			return nil
		})
	}
	_ = g.Wait()

	report := Report{Checks: results, Timestamp: time.Now()}
	var weighted, totalWeight float64
	for _, r := range results {
		weighted += r.Score * r.Weight
		totalWeight += r.Weight
	}
	if totalWeight > 0 {
		report.OverallScore = weighted / totalWeight
	}
	span.SetAttributes(attribute.Float64("integrity.overall_score", report.OverallScore))

	s.react(report)
	return report
}

// react applies the threshold: below it the low-integrity event fires and
// the resource-constraint signal is set; at or above it the signal clears.
func (s *Service) react(report Report) {
	low := report.OverallScore < s.threshold
	if s.sink != nil {
		s.sink.SetResourceConstrained(low)
	}
	if !low {
		log.Debug(log.CatIntegrity, "integrity check passed", "overallScore", report.OverallScore)
		return
	}

	failed := make([]string, 0, len(report.Checks))
	for _, c := range report.Checks {
		if !c.Passed {
			failed = append(failed, c.Name)
		}
	}
	log.Warn(log.CatIntegrity, "low system integrity",
		"overallScore", report.OverallScore, "threshold", s.threshold, "failedChecks", failed)
	if s.f != nil {
		s.f.Publish(field.Event{
			Type:     EventLowIntegrity,
			SourceID: "integrity",
			Payload: map[string]any{
				"overallScore": report.OverallScore,
				"threshold":    s.threshold,
				"failedChecks": failed,
			},
			EssenceLabels: []string{"alignment:dissonant"},
		})
	}
}

// runGuarded traces one check and converts a panic into a zero score.
func runGuarded(ctx context.Context, check namedCheck) (result CheckResult) {
	ctx, span := tracer.Start(ctx, "integrity.check."+check.name)
	defer span.End()
	defer func() {
		if r := recover(); r != nil {
			log.Error(log.CatIntegrity, "integrity check panicked", "check", check.name, "panic", fmt.Sprint(r))
			result = CheckResult{
				Name:    check.name,
				Passed:  false,
				Score:   0,
				Weight:  check.weight,
				Details: map[string]any{"panic": fmt.Sprint(r)},
			}
		}
		span.SetAttributes(
			attribute.Float64("integrity.score", result.Score),
			attribute.Bool("integrity.passed", result.Passed),
		)
	}()
	return check.fn(ctx)
}

type namedCheck struct {
	name   string
	weight float64
	fn     CheckFunc
}
