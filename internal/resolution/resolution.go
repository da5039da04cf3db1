// Package resolution decides market outcomes from social-graph metrics. It
// does not settle anything itself; callers feed its answer to settlement.
package resolution

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"blink-market/internal/models"
	"blink-market/internal/socialgraph"
)

// StaleAfter is how old a metrics reading may be and still decide an outcome.
const StaleAfter = 5 * time.Minute

var (
	// ErrNoMetric is returned for markets that no provider metric tracks.
	ErrNoMetric = errors.New("resolution: market has no tracked metric")
	// ErrProviderUnavailable wraps failures of the metrics provider.
	ErrProviderUnavailable = errors.New("resolution: metrics provider unavailable")
)

// MetricsSource is satisfied by *socialgraph.Client.
type MetricsSource interface {
	GetMetrics(ctx context.Context, kind socialgraph.Kind, targetID, metric string) (*socialgraph.Metrics, error)
}

// Result is a resolver's answer. When Resolved is false the outcome is not
// yet known and Reason says why.
type Result struct {
	Resolved bool   `json:"resolved"`
	Outcome  bool   `json:"outcome"`
	Value    int64  `json:"value"`
	Reason   string `json:"reason,omitempty"`
}

type Resolver interface {
	Resolve(ctx context.Context, m *models.Market) (Result, error)
}

type ThresholdResolver struct {
	source MetricsSource
	now    func() time.Time
}

func NewThresholdResolver(source MetricsSource, now func() time.Time) *ThresholdResolver {
	if now == nil {
		now = time.Now
	}
	return &ThresholdResolver{source: source, now: now}
}

type target struct {
	kind   socialgraph.Kind
	metric string
	// start overrides the provider's baseline when positive.
	start int64
}

func targetFor(m *models.Market) (target, bool, error) {
	params, err := m.DecodeParams()
	if err != nil {
		return target{}, false, err
	}

	switch m.PredictionType {
	case models.PredictionViralCast, models.PredictionTrendingCast, models.PredictionFrameInteractions:
		t := target{kind: socialgraph.KindCast}
		if p, ok := params.(*models.CastParams); ok {
			t.metric = p.Metric
		}
		if m.PredictionType == models.PredictionFrameInteractions && t.metric == "" {
			t.metric = "frame_interactions"
		}
		return t, true, nil
	case models.PredictionFollowerGrowth, models.PredictionCreatorMilestone:
		t := target{kind: socialgraph.KindUser, metric: "followers"}
		if p, ok := params.(*models.CreatorParams); ok && p.Metric != "" {
			t.metric = p.Metric
		}
		return t, true, nil
	case models.PredictionChannelGrowth:
		t := target{kind: socialgraph.KindChannel, metric: "followers"}
		if p, ok := params.(*models.ChannelParams); ok {
			t.start = p.StartFollowers
		}
		return t, true, nil
	case models.PredictionLiveStreamViews:
		return target{kind: socialgraph.KindStream, metric: "views"}, true, nil
	}
	// Polls and engagement battles are decided by an oracle.
	return target{}, false, nil
}

// Resolve fetches the market's metric and applies its threshold rule.
func (r *ThresholdResolver) Resolve(ctx context.Context, m *models.Market) (Result, error) {
	t, ok, err := targetFor(m)
	if err != nil {
		// Params that never decode will not start to, so this is an
		// unresolvable market rather than a provider failure.
		return Result{Reason: fmt.Sprintf("unreadable params: %v", err)}, nil
	}
	if !ok {
		return Result{Reason: "no automatic rule for " + m.PredictionType.String()}, nil
	}

	metrics, err := r.source.GetMetrics(ctx, t.kind, m.TargetID, t.metric)
	if errors.Is(err, socialgraph.ErrNotFound) {
		return Result{Reason: "target not found"}, nil
	}
	if err != nil {
		return Result{}, err
	}
	if t.start > 0 {
		metrics.StartValue = t.start
	}

	outcome, ok := CheckOutcome(m.PredictionType, metrics, m.Threshold, r.now())
	if !ok {
		return Result{Value: metrics.CurrentValue, Reason: "metrics are stale"}, nil
	}
	return Result{Resolved: true, Outcome: outcome, Value: metrics.CurrentValue}, nil
}

// CheckOutcome applies the threshold rule of t. ok is false when the
// reading is older than StaleAfter or t has no numeric rule.
func CheckOutcome(t models.PredictionType, metrics *socialgraph.Metrics, threshold int64, now time.Time) (outcome bool, ok bool) {
	if metrics == nil || metrics.LastUpdated.Before(now.Add(-StaleAfter)) {
		return false, false
	}

	switch t {
	case models.PredictionChannelGrowth:
		return metrics.CurrentValue-metrics.StartValue >= threshold, true
	case models.PredictionViralCast, models.PredictionFrameInteractions,
		models.PredictionFollowerGrowth, models.PredictionCreatorMilestone,
		models.PredictionLiveStreamViews, models.PredictionTrendingCast:
		return metrics.CurrentValue >= threshold, true
	}
	return false, false
}

// Likelihood projects the current growth rate over the time remaining and
// returns a rough probability of reaching threshold, clamped to [0.1, 0.9]
// unless the answer is already certain.
func Likelihood(metrics *socialgraph.Metrics, threshold int64, remaining time.Duration) float64 {
	if remaining <= 0 {
		return 0
	}
	if metrics.CurrentValue >= threshold {
		return 1
	}
	needed := float64(threshold - metrics.CurrentValue)
	projected := metrics.ChangeRate * remaining.Hours()
	likelihood := math.Min(1, projected/needed)
	return math.Max(0.1, math.Min(0.9, likelihood))
}

// Progress is a live view of how far a market's target has come.
type Progress struct {
	MarketID           uint      `json:"market_id"`
	Metric             string    `json:"metric"`
	TargetValue        int64     `json:"target_value"`
	CurrentValue       int64     `json:"current_value"`
	ProgressPercentage float64   `json:"progress_percentage"`
	ChangeRate         float64   `json:"change_rate"`
	HoursRemaining     float64   `json:"hours_remaining"`
	Likelihood         float64   `json:"likelihood"`
	Stale              bool      `json:"stale"`
	LastUpdated        time.Time `json:"last_updated"`
}

// Progress reads m's metric and reports progress toward its threshold. For
// channel growth, CurrentValue is the growth since the baseline.
func (r *ThresholdResolver) Progress(ctx context.Context, m *models.Market) (*Progress, error) {
	t, ok, err := targetFor(m)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoMetric, err)
	}
	if !ok {
		return nil, ErrNoMetric
	}

	metrics, err := r.source.GetMetrics(ctx, t.kind, m.TargetID, t.metric)
	if errors.Is(err, socialgraph.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	if t.start > 0 {
		metrics.StartValue = t.start
	}

	current := metrics.CurrentValue
	if m.PredictionType == models.PredictionChannelGrowth {
		current -= metrics.StartValue
	}
	now := r.now()
	remaining := m.Deadline.Sub(now)
	if remaining < 0 {
		remaining = 0
	}

	p := &Progress{
		MarketID:       m.ID,
		Metric:         metrics.Metric,
		TargetValue:    m.Threshold,
		CurrentValue:   current,
		ChangeRate:     metrics.ChangeRate,
		HoursRemaining: math.Round(remaining.Hours()*100) / 100,
		Stale:          metrics.LastUpdated.Before(now.Add(-StaleAfter)),
		LastUpdated:    metrics.LastUpdated,
	}
	if p.Metric == "" {
		p.Metric = t.metric
	}
	if m.Threshold > 0 {
		p.ProgressPercentage = math.Round(float64(current)/float64(m.Threshold)*10000) / 100
	}
	p.Likelihood = Likelihood(&socialgraph.Metrics{CurrentValue: current, ChangeRate: metrics.ChangeRate}, m.Threshold, remaining)
	return p, nil
}
