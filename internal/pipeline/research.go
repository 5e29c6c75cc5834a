package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mohammad-safakhou/claimcheck/internal/progress"
	"github.com/mohammad-safakhou/claimcheck/internal/telemetry"
	"github.com/mohammad-safakhou/claimcheck/models"
)

// researchProgress is reported for every statement event; 100 is reserved for completion.
const researchProgress = 99

// research verifies each extracted statement in order. A statement that fails is
// reported and skipped; only cancellation of the job ends the stage early.
func (r *run) research(ctx context.Context) error {
	if !r.req.ResearchStatements || r.o.researcher == nil {
		return nil
	}
	statements := r.analysis.Statements
	total := len(statements)
	r.publish(ctx, progress.Update{
		Status:              models.StatusResearching,
		Step:                "Starting statement research",
		Progress:            researchProgress,
		Message:             fmt.Sprintf("Researching %d statements", total),
		Data:                map[string]any{"statements_total": total},
		StatementsTotal:     progress.Count(total),
		StatementsCompleted: progress.Count(0),
	})

	limit := rate.Inf
	if r.o.statementDelay > 0 {
		limit = rate.Every(r.o.statementDelay)
	}
	limiter := rate.NewLimiter(limit, 1)

	for i, st := range statements {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("research statements: %w", err)
		}
		n := i + 1
		r.publish(ctx, progress.Update{
			Step:     fmt.Sprintf("Researching statement %d/%d", n, total),
			Progress: researchProgress,
			Message:  st.Text,
			Data: map[string]any{
				"current_statement":  n,
				"total_statements":   total,
				"statement_text":     st.Text,
				"statement_category": st.Category,
			},
		})

		resp, err := r.o.researcher.ResearchMedia(ctx, r.media.ID, r.statementRequest(st))
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("research statements: %w", ctx.Err())
			}
			telemetry.StatementsResearched.WithLabelValues("error").Inc()
			r.logger.Warn("statement research failed", zap.Int("statement_index", n), zap.Error(err))
			r.publish(ctx, progress.Update{
				Step:     fmt.Sprintf("Statement %d/%d failed", n, total),
				Progress: researchProgress,
				Message:  "Statement research failed",
				Error:    err.Error(),
				Data:     map[string]any{"statement_index": n, "statement_text": st.Text},
			})
			continue
		}

		r.researched++
		telemetry.StatementsResearched.WithLabelValues("ok").Inc()
		r.publish(ctx, progress.Update{
			Step:                fmt.Sprintf("Statement %d/%d researched", n, total),
			Progress:            researchProgress,
			Message:             fmt.Sprintf("%s: %s", resp.Verdict, st.Text),
			StatementsCompleted: progress.Count(r.researched),
			Data: map[string]any{
				"statement_index": n,
				"statement_text":  st.Text,
				"research_result": map[string]any{
					"status":     resp.Verdict,
					"verdict":    resp.VerdictText,
					"correction": resp.Correction,
					"record_id":  resp.RecordID,
				},
				"completed_count":  r.researched,
				"total_statements": total,
			},
		})
	}
	return nil
}

func (r *run) statementRequest(st models.Statement) models.ResearchRequest {
	note := st.Context
	if note == "" {
		note = r.req.Context
	}
	return models.ResearchRequest{
		Statement: st.Text,
		Source:    r.req.SpeakerName,
		Context:   note,
		Category:  st.Category,
	}
}
