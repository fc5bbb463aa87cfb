// Package generate turns a batch of accepted correspondences into
// persisted mapping rules: one synthesis call followed by individual rule
// creations under bounded concurrency, with per-item failure aggregation
// and progress notifications. The batch is intentionally not atomic —
// successfully created rules are kept when later items fail.
package generate

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/c360studio/mapspec/events"
	"github.com/c360studio/mapspec/gateway"
	"github.com/c360studio/mapspec/rules"
)

// DefaultConcurrency caps how many rule creation requests are in flight
// simultaneously.
const DefaultConcurrency = 5

// Service is the gateway subset the orchestrator consumes.
type Service interface {
	GenerateRules(ctx context.Context, req gateway.GenerateRequest) ([]*rules.Rule, error)
	AppendRule(ctx context.Context, parentID string, payload *rules.Rule) (*rules.Rule, error)
}

// Orchestrator drives bulk rule generation.
type Orchestrator struct {
	svc         Service
	bus         events.Bus
	logger      *slog.Logger
	concurrency int
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithBus sets the notification bus.
func WithBus(bus events.Bus) Option {
	return func(o *Orchestrator) { o.bus = bus }
}

// WithLogger sets the orchestrator logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithConcurrency overrides the creation concurrency ceiling.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// New creates an orchestrator over the given service.
func New(svc Service, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		svc:         svc,
		bus:         events.NopBus{},
		logger:      slog.Default(),
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type outcome struct {
	definition *rules.Rule
	created    *rules.Rule
	err        error
}

// Generate synthesizes rule definitions from the correspondences and
// persists each definition as an individual creation request under the
// concurrency ceiling. Creations are dispatched in input order but may
// complete out of order; the aggregated outcome keeps input order either
// way. After every creation settles — success or failure — a progress
// event is published.
//
// A synthesis failure aborts the whole call before anything was created.
// Per-item creation failures are collected into an *Error carrying exactly
// the failed subset; rules created before or alongside a failure are not
// rolled back, the returned ids name them so callers can retry just the
// failed items. On full success a rule-view-closed and a reload event are
// published.
func (o *Orchestrator) Generate(ctx context.Context, correspondences []gateway.Correspondence, parentID, uriPrefix string) ([]string, error) {
	definitions, err := o.svc.GenerateRules(ctx, gateway.GenerateRequest{
		Correspondences: correspondences,
		ParentID:        parentID,
		URIPrefix:       uriPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("synthesize rules: %w", err)
	}

	total := len(definitions)
	o.logger.Info("creating generated rules",
		"count", total, "parent", parentID, "concurrency", o.concurrency)

	outcomes := make([]outcome, total)
	var settled atomic.Int64

	g := new(errgroup.Group)
	g.SetLimit(o.concurrency)
	for i, definition := range definitions {
		g.Go(func() error {
			created, err := o.svc.AppendRule(ctx, parentID, definition)
			outcomes[i] = outcome{definition: definition, created: created, err: err}

			count := settled.Add(1)
			o.bus.Publish(events.SuggestionProgress{
				ProgressNumber: progressPercent(count, int64(total)),
				LastUpdate:     fmt.Sprintf("Saved %d of %d rules.", count, total),
			})
			return nil
		})
	}
	_ = g.Wait()

	createdIDs := make([]string, 0, total)
	var failed []FailedRule
	for _, out := range outcomes {
		if out.err != nil {
			rulesTotal.WithLabelValues(outcomeFailed).Inc()
			failed = append(failed, FailedRule{Rule: out.definition, Err: out.err})
			continue
		}
		rulesTotal.WithLabelValues(outcomeCreated).Inc()
		if out.created != nil {
			createdIDs = append(createdIDs, out.created.ID)
		}
	}

	if len(failed) > 0 {
		o.logger.Warn("bulk rule generation partially failed",
			"failed", len(failed), "created", len(createdIDs))
		return createdIDs, newError(failed)
	}

	o.bus.Publish(events.RuleViewClosed{})
	o.bus.Publish(events.Reload{Full: true})
	return createdIDs, nil
}

// progressPercent returns count/total as a percentage rounded to the
// nearest integer.
func progressPercent(count, total int64) int {
	if total == 0 {
		return 100
	}
	return int(math.Round(float64(count) / float64(total) * 100))
}
