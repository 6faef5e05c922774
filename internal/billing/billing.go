package billing

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/Newbigfonsz/llm-gateway/internal/model"
)

// MicroUSD is a cost in millionths of a dollar. Costs are computed once
// per request and aggregated in integer arithmetic so repeated additions
// never compound floating-point error.
type MicroUSD int64

func (m MicroUSD) USD() float64 {
	return float64(m) / 1e6
}

// Cost converts token counts to money using the descriptor's per-1K
// pricing, in effect at invocation time.
func Cost(promptTokens, completionTokens int, d model.Descriptor) MicroUSD {
	in := int64(math.Round(d.PriceInputPer1K * 1e6))
	out := int64(math.Round(d.PriceOutputPer1K * 1e6))
	return MicroUSD(int64(promptTokens)*in/1000 + int64(completionTokens)*out/1000)
}

// UsageEvent is one billable invocation. Append-mostly; a retried client
// request is a new event.
type UsageEvent struct {
	ID           string
	TeamID       string
	RequestID    string
	Date         string // YYYY-MM-DD, UTC
	Model        string
	InputTokens  int
	OutputTokens int
	CostMicroUSD MicroUSD
	LatencyMs    int64
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

type Store interface {
	Record(ctx context.Context, event *UsageEvent) error
	ListRange(ctx context.Context, teamID string, from, to time.Time) ([]*UsageEvent, error)
}

type Summary struct {
	TotalRequests       int     `json:"total_requests"`
	TotalInputTokens    int     `json:"total_input_tokens"`
	TotalOutputTokens   int     `json:"total_output_tokens"`
	TotalTokens         int     `json:"total_tokens"`
	TotalCostUSD        float64 `json:"total_cost_usd"`
	AvgDailyCostUSD     float64 `json:"avg_daily_cost_usd"`
	AvgTokensPerRequest float64 `json:"avg_tokens_per_request"`
}

type DailyUsage struct {
	Date         string  `json:"date"`
	Requests     int     `json:"requests"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
}

type ModelUsage struct {
	Model    string `json:"model"`
	Requests int    `json:"requests"`
}

// Aggregate folds usage events into the reporting shape. An empty slice
// yields zeroed totals.
func Aggregate(events []*UsageEvent, days int) (Summary, []DailyUsage, []ModelUsage) {
	var totalCost MicroUSD
	summary := Summary{}
	dailyByDate := make(map[string]*DailyUsage)
	dailyCost := make(map[string]MicroUSD)
	byModel := make(map[string]int)

	for _, e := range events {
		summary.TotalRequests++
		summary.TotalInputTokens += e.InputTokens
		summary.TotalOutputTokens += e.OutputTokens
		totalCost += e.CostMicroUSD

		d, ok := dailyByDate[e.Date]
		if !ok {
			d = &DailyUsage{Date: e.Date}
			dailyByDate[e.Date] = d
		}
		d.Requests++
		d.InputTokens += e.InputTokens
		d.OutputTokens += e.OutputTokens
		dailyCost[e.Date] += e.CostMicroUSD

		byModel[e.Model]++
	}

	summary.TotalTokens = summary.TotalInputTokens + summary.TotalOutputTokens
	summary.TotalCostUSD = totalCost.USD()
	if days > 0 {
		summary.AvgDailyCostUSD = (totalCost / MicroUSD(days)).USD()
	}
	if summary.TotalRequests > 0 {
		summary.AvgTokensPerRequest = float64(summary.TotalTokens) / float64(summary.TotalRequests)
	}

	daily := make([]DailyUsage, 0, len(dailyByDate))
	for date, d := range dailyByDate {
		d.CostUSD = dailyCost[date].USD()
		daily = append(daily, *d)
	}
	sort.Slice(daily, func(i, j int) bool { return daily[i].Date < daily[j].Date })

	models := make([]ModelUsage, 0, len(byModel))
	for m, n := range byModel {
		models = append(models, ModelUsage{Model: m, Requests: n})
	}
	sort.Slice(models, func(i, j int) bool {
		if models[i].Requests != models[j].Requests {
			return models[i].Requests > models[j].Requests
		}
		return models[i].Model < models[j].Model
	})

	return summary, daily, models
}
