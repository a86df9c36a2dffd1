package routing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/you/swap-engine/internal/clmath"
	"github.com/you/swap-engine/internal/dex/core"
	"github.com/you/swap-engine/internal/metrics"
	"github.com/you/swap-engine/internal/swappath"
	"github.com/you/swap-engine/internal/tokens"
	"github.com/you/swap-engine/internal/types"
)

const DefaultTierTimeout = 3 * time.Second

// Tier is one routing tier: a quoter plus, when it can encode swaps, a calldata builder.
type Tier struct {
	Tier    core.RouteTier
	Quoter  core.Quoter
	Builder core.CalldataBuilder
}

// Selection is the outcome of a routed request. Only one tier's quote is
// ever kept.
type Selection struct {
	RequestID string
	Quote     *types.Quote
	Tier      core.RouteTier
	Builder   core.CalldataBuilder
	Attempts  []Attempt
	State     State
}

type TraceEvent struct {
	RequestID string
	State     State
	Tier      core.RouteTier
	Err       error
}

type TraceFunc func(TraceEvent)

type Option func(*Orchestrator)

func WithTierTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithTrace observes every state the request passes through.
func WithTrace(fn TraceFunc) Option {
	return func(o *Orchestrator) { o.trace = fn }
}

// Orchestrator walks the route tiers in priority order:
// tax-enforcing (only for taxed tokens), general, cross-venue fallback.
// Tiers are tried one at a time; the first usable quote ends the walk.
type Orchestrator struct {
	log        *zap.Logger
	classifier tokens.Classifier
	tiers      map[core.RouteTier]Tier
	timeout    time.Duration
	trace      TraceFunc
}

func New(classifier tokens.Classifier, tiers []Tier, log *zap.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		log:        log,
		classifier: classifier,
		tiers:      make(map[core.RouteTier]Tier, len(tiers)),
		timeout:    DefaultTierTimeout,
	}
	for _, t := range tiers {
		o.tiers[t.Tier] = t
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// requestContext lives for a single request only.
type requestContext struct {
	id       string
	start    time.Time
	req      types.SwapRequest
	attempts []Attempt
}

func (o *Orchestrator) Quote(ctx context.Context, req types.SwapRequest) (*Selection, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	rc := &requestContext{id: uuid.NewString(), start: time.Now(), req: req}
	log := o.log.With(zap.String("request_id", rc.id))

	state := StateStart
	var sel *Selection
	for !state.Terminal() {
		o.emit(TraceEvent{RequestID: rc.id, State: state, Tier: state.tier()})

		switch state {
		case StateStart:
			taxed, err := o.isTaxed(ctx, req)
			if err != nil {
				// fail closed: a taxed token must never slip past the tax router
				return nil, err
			}
			switch {
			case taxed:
				state = StateTryTax
			case req.CrossChain():
				state = StateTryFallback
			default:
				state = StateTryGeneral
			}

		case StateTryTax, StateTryGeneral, StateTryFallback:
			s, err := o.try(ctx, rc, state.tier(), log)
			if err != nil {
				return nil, err
			}
			if s != nil {
				sel = s
				state = StateQuoted
				continue
			}
			state = o.next(state, req)
		}
	}
	o.emit(TraceEvent{RequestID: rc.id, State: state})

	if state == StateFailed {
		metrics.NoRouteFound.Inc()
		log.Warn("no route found", zap.Int("attempts", len(rc.attempts)), zap.Duration("elapsed", time.Since(rc.start)))
		return nil, &NoRouteError{RequestID: rc.id, Attempts: rc.attempts}
	}
	metrics.RoutesSelected.WithLabelValues(sel.Tier.String()).Inc()
	log.Info("route selected",
		zap.String("tier", sel.Tier.String()),
		zap.String("venue", sel.Quote.Venue),
		zap.String("amountIn", sel.Quote.AmountIn.String()),
		zap.String("amountOut", sel.Quote.AmountOut.String()),
		zap.Duration("elapsed", time.Since(rc.start)),
	)
	return sel, nil
}

// next is the state after a tier came back unusable. The general tier is
// on-chain and same-chain only, so cross-chain requests skip it.
func (o *Orchestrator) next(s State, req types.SwapRequest) State {
	switch s {
	case StateTryTax:
		if req.CrossChain() {
			return StateTryFallback
		}
		return StateTryGeneral
	case StateTryGeneral:
		return StateTryFallback
	default:
		return StateFailed
	}
}

func (o *Orchestrator) isTaxed(ctx context.Context, req types.SwapRequest) (bool, error) {
	if o.classifier == nil {
		return false, nil
	}
	in, err := o.classifier.IsTaxToken(ctx, req.TokenIn)
	if err != nil {
		return false, fmt.Errorf("classify %s: %w", req.TokenIn.Hex(), err)
	}
	if in {
		return true, nil
	}
	out, err := o.classifier.IsTaxToken(ctx, req.TokenOut)
	if err != nil {
		return false, fmt.Errorf("classify %s: %w", req.TokenOut.Hex(), err)
	}
	return out, nil
}

// try runs one tier under its own timeout. A nil selection with a nil error
// means the tier was unusable and the walk goes on; an error ends the request.
func (o *Orchestrator) try(ctx context.Context, rc *requestContext, tier core.RouteTier, log *zap.Logger) (*Selection, error) {
	t, ok := o.tiers[tier]
	if !ok || t.Quoter == nil {
		o.record(rc, tier, core.Unavailable("routing", errors.New("tier not configured")), 0, "skipped", log)
		return nil, nil
	}

	tctx, cancel := context.WithTimeout(ctx, o.timeout)
	start := time.Now()
	q, err := t.Quoter.Quote(tctx, rc.req)
	cancel()
	latency := time.Since(start)
	metrics.TierLatency.WithLabelValues(tier.String()).Observe(latency.Seconds())

	switch {
	case ctx.Err() != nil:
		// caller went away; nothing to roll back
		return nil, ctx.Err()
	case err == nil:
		if verr := usable(q); verr != nil {
			o.record(rc, tier, core.Unavailable("routing", verr), latency, "unusable", log)
			return nil, nil
		}
		o.record(rc, tier, nil, latency, "quoted", log)
		return &Selection{
			RequestID: rc.id,
			Quote:     q,
			Tier:      tier,
			Builder:   t.Builder,
			Attempts:  rc.attempts,
			State:     StateQuoted,
		}, nil
	case malformed(err):
		o.record(rc, tier, err, latency, "malformed", log)
		return nil, err
	case errors.Is(err, context.DeadlineExceeded):
		o.record(rc, tier, core.Unavailable("routing", fmt.Errorf("%s tier timed out after %s: %w", tier, o.timeout, err)), latency, "timeout", log)
		return nil, nil
	case errors.Is(err, core.ErrRouteUnavailable):
		o.record(rc, tier, err, latency, "unavailable", log)
		return nil, nil
	default:
		o.record(rc, tier, core.Unavailable("routing", err), latency, "error", log)
		return nil, nil
	}
}

func (o *Orchestrator) record(rc *requestContext, tier core.RouteTier, err error, latency time.Duration, outcome string, log *zap.Logger) {
	rc.attempts = append(rc.attempts, Attempt{Tier: tier, Err: err, Latency: latency})
	metrics.TierAttempts.WithLabelValues(tier.String(), outcome).Inc()
	fields := []zap.Field{
		zap.String("tier", tier.String()),
		zap.String("outcome", outcome),
		zap.Duration("latency", latency),
	}
	if err != nil {
		log.Info("tier attempt", append(fields, zap.Error(err))...)
		return
	}
	log.Debug("tier attempt", fields...)
}

func (o *Orchestrator) emit(ev TraceEvent) {
	if o.trace != nil {
		o.trace(ev)
	}
}

// malformed errors describe a bad request, not a bad venue. A venue that
// wrapped one as unavailable keeps it its own failure.
func malformed(err error) bool {
	if errors.Is(err, core.ErrRouteUnavailable) {
		return false
	}
	return errors.Is(err, swappath.ErrPathDiscontinuity) ||
		errors.Is(err, clmath.ErrDomain) ||
		errors.Is(err, types.ErrInvalidRequest)
}

func usable(q *types.Quote) error {
	switch {
	case q == nil:
		return errors.New("nil quote")
	case q.AmountIn == nil || q.AmountIn.Sign() <= 0 || q.AmountOut == nil || q.AmountOut.Sign() <= 0:
		return core.ErrInsufficientLiquidity
	}
	if len(q.Path) > 0 {
		if err := q.Path.Validate(); err != nil {
			return err
		}
	}
	return nil
}
