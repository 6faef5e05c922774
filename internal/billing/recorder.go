package billing

import (
	"context"
	"log/slog"
	"time"

	"github.com/Newbigfonsz/llm-gateway/internal/observability"
)

// Recorder persists usage events and serves the read side for reporting.
// Recording is best-effort: a storage failure is logged and counted but
// never fails the client-visible request.
type Recorder struct {
	store     Store
	retention time.Duration
	log       *slog.Logger
}

func NewRecorder(store Store, retentionDays int, log *slog.Logger) *Recorder {
	return &Recorder{
		store:     store,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		log:       log,
	}
}

func (r *Recorder) Record(ctx context.Context, teamID, requestID, modelAlias string, inputTokens, outputTokens int, cost MicroUSD, latencyMs int64) {
	now := time.Now().UTC()
	event := &UsageEvent{
		TeamID:       teamID,
		RequestID:    requestID,
		Date:         now.Format("2006-01-02"),
		Model:        modelAlias,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		CostMicroUSD: cost,
		LatencyMs:    latencyMs,
		ExpiresAt:    now.Add(r.retention),
	}
	if err := r.store.Record(ctx, event); err != nil {
		observability.UsageRecordFailuresTotal.Inc()
		r.log.Warn("failed to record usage event",
			"team_id", teamID,
			"request_id", requestID,
			"model", modelAlias,
			"error", err,
		)
	}
}

// Usage aggregates the team's events over the trailing N days.
func (r *Recorder) Usage(ctx context.Context, teamID string, days int) (Summary, []DailyUsage, []ModelUsage, error) {
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -days)
	events, err := r.store.ListRange(ctx, teamID, from, to)
	if err != nil {
		return Summary{}, nil, nil, err
	}
	summary, daily, models := Aggregate(events, days)
	return summary, daily, models, nil
}
