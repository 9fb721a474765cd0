package metrics

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/kestrelhq/kestrel/ai/intent"
)

const (
	// MinWindowHours and MaxWindowHours bound the analytics window.
	MinWindowHours = 1
	MaxWindowHours = 168
)

// TierShare is the share of resolutions handled by one tier.
type TierShare struct {
	Tier    int     `json:"tier"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// IntentCount is a per-intent resolution count.
type IntentCount struct {
	Intent intent.Intent `json:"intent"`
	Count  int           `json:"count"`
}

// Summary aggregates resolution records over a time window. All aggregates
// are computed here rather than in SQL so both database drivers stay simple.
type Summary struct {
	WindowHours      int             `json:"window_hours"`
	Total            int             `json:"total"`
	TierDistribution []TierShare     `json:"tier_distribution"`
	AvgLatencyByTier map[int]float64 `json:"avg_latency_by_tier"`
	SuccessRate      float64         `json:"success_rate"`
	TopIntents       []IntentCount   `json:"top_intents"`
	RecentFailures   []*Record       `json:"recent_failures"`
}

// Summarize loads records for the past window and aggregates them. The
// window is clamped to [1h, 168h].
func (c *Collector) Summarize(ctx context.Context, hours, topN, failureN int) (*Summary, error) {
	if c.sink == nil {
		return nil, errors.New("analytics requires a record sink")
	}
	if hours < MinWindowHours {
		hours = MinWindowHours
	}
	if hours > MaxWindowHours {
		hours = MaxWindowHours
	}

	since := time.Now().Add(-time.Duration(hours) * time.Hour)
	records, err := c.sink.ResolutionRecordsSince(ctx, since)
	if err != nil {
		return nil, errors.Wrap(err, "load resolution records")
	}
	return summarize(records, hours, topN, failureN), nil
}

func summarize(records []*Record, hours, topN, failureN int) *Summary {
	s := &Summary{
		WindowHours:      hours,
		Total:            len(records),
		AvgLatencyByTier: make(map[int]float64),
	}
	if len(records) == 0 {
		return s
	}

	tierCounts := make(map[int]int)
	tierLatency := make(map[int]int64)
	intentCounts := make(map[intent.Intent]int)
	succeeded := 0
	var failures []*Record

	for _, rec := range records {
		tierCounts[rec.Tier]++
		tierLatency[rec.Tier] += rec.LatencyMs
		if rec.Intent != "" && rec.Intent != intent.IntentUnknown {
			intentCounts[rec.Intent]++
		}
		if rec.Success {
			succeeded++
		} else {
			failures = append(failures, rec)
		}
	}

	tiers := make([]int, 0, len(tierCounts))
	for tier := range tierCounts {
		tiers = append(tiers, tier)
	}
	sort.Ints(tiers)

	// The last tier absorbs rounding drift so the shares always sum to 100.
	var allocated float64
	for i, tier := range tiers {
		count := tierCounts[tier]
		share := TierShare{Tier: tier, Count: count}
		if i == len(tiers)-1 {
			share.Percent = round2(100 - allocated)
		} else {
			share.Percent = round2(float64(count) * 100 / float64(len(records)))
			allocated += share.Percent
		}
		s.TierDistribution = append(s.TierDistribution, share)
		s.AvgLatencyByTier[tier] = round2(float64(tierLatency[tier]) / float64(count))
	}

	s.SuccessRate = round2(float64(succeeded) / float64(len(records)))

	s.TopIntents = make([]IntentCount, 0, len(intentCounts))
	for name, count := range intentCounts {
		s.TopIntents = append(s.TopIntents, IntentCount{Intent: name, Count: count})
	}
	sort.Slice(s.TopIntents, func(i, j int) bool {
		if s.TopIntents[i].Count != s.TopIntents[j].Count {
			return s.TopIntents[i].Count > s.TopIntents[j].Count
		}
		return s.TopIntents[i].Intent < s.TopIntents[j].Intent
	})
	if topN > 0 && len(s.TopIntents) > topN {
		s.TopIntents = s.TopIntents[:topN]
	}

	sort.Slice(failures, func(i, j int) bool {
		return failures[i].Timestamp.After(failures[j].Timestamp)
	})
	if failureN > 0 && len(failures) > failureN {
		failures = failures[:failureN]
	}
	s.RecentFailures = failures

	return s
}

func round2(f float64) float64 {
	return float64(int64(f*100+0.5)) / 100
}
