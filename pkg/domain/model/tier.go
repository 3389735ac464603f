package model

import (
	"math"
	"time"

	"github.com/repolens/repolens/pkg/domain/types"
)

// EntityMetrics is the classification input derived from a fresh entity record
type EntityMetrics struct {
	Stars           int
	GrowthVelocity  float64
	EngagementScore float64
}

// TierThresholds holds the classification boundaries. The concrete numbers
// are configuration, not a contract; defaults live in DefaultTierThresholds.
type TierThresholds struct {
	Tier1Stars    int
	Tier1StarsLow int
	Tier1Velocity float64
	Tier2Stars    int
	Tier2Velocity float64
}

func DefaultTierThresholds() TierThresholds {
	return TierThresholds{
		Tier1Stars:    50000,
		Tier1StarsLow: 10000,
		Tier1Velocity: 50,
		Tier2Stars:    5000,
		Tier2Velocity: 20,
	}
}

// Classify maps metrics to exactly one tier. Tier 3 is the explicit else
// branch: an input that matches neither tier 1 nor tier 2 always lands there.
func (x TierThresholds) Classify(m EntityMetrics) types.Tier {
	switch {
	case m.Stars >= x.Tier1Stars,
		m.Stars >= x.Tier1StarsLow && m.GrowthVelocity > x.Tier1Velocity:
		return types.Tier1

	case m.Stars >= x.Tier2Stars,
		m.GrowthVelocity > x.Tier2Velocity:
		return types.Tier2

	default:
		return types.Tier3
	}
}

// ScanPriority derives the within-tier ordering score: a weighted mix of
// growth velocity, engagement and a log-scaled star bucket. It never affects
// tier membership.
func ScanPriority(m EntityMetrics) float64 {
	velocity := m.GrowthVelocity / (m.GrowthVelocity + 50)
	if velocity < 0 {
		velocity = 0
	}

	bucket := 0.0
	if m.Stars > 0 {
		bucket = math.Log10(float64(m.Stars)) / 6
		if bucket > 1 {
			bucket = 1
		}
	}

	return 0.5*velocity + 0.3*m.EngagementScore + 0.2*bucket
}

// GrowthVelocity computes stars gained per day between two observations.
// Unknown history or a non-positive window yields zero.
func GrowthVelocity(prevStars, stars int, since time.Duration) float64 {
	if since <= 0 {
		return 0
	}
	days := since.Hours() / 24
	if days <= 0 {
		return 0
	}
	return float64(stars-prevStars) / days
}

// EngagementScore estimates community engagement relative to audience size
func EngagementScore(e *Entity) float64 {
	if e.Stars <= 0 {
		return 0
	}
	score := float64(e.Forks+e.Watchers) / float64(e.Stars*2)
	if score > 1 {
		return 1
	}
	return score
}

// NewAssignment builds the tier assignment of an entity from its fresh
// metrics and the previous assignment (nil on first discovery).
func NewAssignment(thresholds TierThresholds, e *Entity, prev *TierAssignment, now time.Time) *TierAssignment {
	metrics := EntityMetrics{
		Stars:           e.Stars,
		EngagementScore: EngagementScore(e),
	}
	assign := &TierAssignment{
		EntityID:  e.ID,
		Stars:     e.Stars,
		UpdatedAt: now,
	}
	if prev != nil {
		metrics.GrowthVelocity = GrowthVelocity(prev.Stars, e.Stars, now.Sub(prev.UpdatedAt))
		assign.LastDeepScanAt = prev.LastDeepScanAt
		assign.LastBasicScanAt = prev.LastBasicScanAt
	}

	assign.Tier = thresholds.Classify(metrics)
	assign.GrowthVelocity = metrics.GrowthVelocity
	assign.EngagementScore = metrics.EngagementScore
	assign.ScanPriority = ScanPriority(metrics)

	return assign
}
