package research

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mohammad-safakhou/claimcheck/internal/telemetry"
	"github.com/mohammad-safakhou/claimcheck/models"
)

// Attempt records one strategy invocation in a chain.
type Attempt struct {
	Provider string
	Verdict  models.Verdict
	Err      error
}

// Chain tries capability-equivalent knowledge strategies in order under one shared
// timeout. Every strategy but the last must return a definitive verdict to be
// accepted; the last is accepted whatever its verdict.
type Chain struct {
	strategies []KnowledgeProvider
	budget     time.Duration
	perCall    time.Duration
	logger     *zap.Logger
}

// NewChain builds a chain. budget bounds the whole chain, perCall each strategy; zero disables a bound.
func NewChain(strategies []KnowledgeProvider, budget, perCall time.Duration, logger *zap.Logger) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{strategies: strategies, budget: budget, perCall: perCall, logger: logger.Named("knowledge")}
}

// Len returns the number of strategies.
func (c *Chain) Len() int { return len(c.strategies) }

// Research runs the chain. The returned index is the accepted strategy's position.
// When every strategy fails, the best UNVERIFIABLE answer seen is returned; with
// none at all the error is ErrNoKnowledgeProvider.
func (c *Chain) Research(ctx context.Context, req models.ResearchRequest) (models.Evidence, int, []Attempt, error) {
	if len(c.strategies) == 0 {
		return models.Evidence{}, -1, nil, ErrNoKnowledgeProvider
	}
	if c.budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.budget)
		defer cancel()
	}

	var (
		attempts []Attempt
		held     models.Evidence
		heldIdx  = -1
	)
	for i, s := range c.strategies {
		if ctx.Err() != nil {
			break
		}
		ev, err := c.call(ctx, s, req)
		attempts = append(attempts, Attempt{Provider: s.Name(), Verdict: ev.Verdict, Err: err})
		if err != nil {
			c.logger.Warn("knowledge strategy failed", zap.String("provider", s.Name()), zap.Error(err))
			continue
		}
		last := i == len(c.strategies)-1
		if ev.Verdict.Definitive() || last {
			return ev, i, attempts, nil
		}
		c.logger.Info("knowledge strategy unverifiable, escalating", zap.String("provider", s.Name()))
		if heldIdx < 0 {
			held, heldIdx = ev, i
		}
	}
	if heldIdx >= 0 {
		return held, heldIdx, attempts, nil
	}
	if err := ctx.Err(); err != nil {
		return models.Evidence{}, -1, attempts, fmt.Errorf("%w: %v", ErrNoKnowledgeProvider, err)
	}
	return models.Evidence{}, -1, attempts, ErrNoKnowledgeProvider
}

func (c *Chain) call(ctx context.Context, s KnowledgeProvider, req models.ResearchRequest) (models.Evidence, error) {
	if c.perCall > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.perCall)
		defer cancel()
	}
	started := time.Now()
	ev, err := s.Research(ctx, req)
	telemetry.ObserveProvider(TierKnowledge, s.Name(), started, err)
	if err != nil {
		return models.Evidence{}, err
	}
	if ev.Provider == "" {
		ev.Provider = s.Name()
	}
	return ev, nil
}
