// Package interval implements the adaptive polling cadence: a pure mapping
// from recent activity to a poll interval, plus the trigger that decides
// when a subscription's stored interval should be recomputed.
package interval

// AdjustmentK is the multiple of the current interval, since createdAt,
// that must elapse before a recompute is even attempted.
const AdjustmentK = 24

// ChangeThreshold is the minimum relative change required to actually apply
// a recomputed interval, avoiding churn from small activity swings.
const ChangeThreshold = 0.5

const (
	veryActiveSeconds = 3600
	activeSeconds     = 14400
	moderateSeconds   = 43200
	inactiveSeconds   = 86400
)

// Metrics is the recent-activity snapshot the tier function reads.
type Metrics struct {
	ItemsLast7Days      int
	ItemsLast30Days     int
	DaysSinceLastItem   *int
}

// PollIntervalSeconds maps recent activity to a tier's poll cadence.
func PollIntervalSeconds(m Metrics) int64 {
	switch {
	case m.ItemsLast7Days >= 7:
		return veryActiveSeconds
	case m.ItemsLast7Days >= 1:
		return activeSeconds
	case m.ItemsLast30Days >= 1:
		return moderateSeconds
	default:
		return inactiveSeconds
	}
}

// ShouldRecompute reports whether enough time has elapsed since createdAt,
// in multiples of AdjustmentK·currentInterval, to attempt a recompute.
func ShouldRecompute(createdAt, now, currentIntervalSeconds int64) bool {
	if currentIntervalSeconds <= 0 {
		return false
	}
	elapsedSeconds := (now - createdAt) / 1000
	if elapsedSeconds <= 0 {
		return false
	}
	threshold := AdjustmentK * currentIntervalSeconds
	multiples := elapsedSeconds / threshold
	return multiples > 0 && elapsedSeconds%threshold < currentIntervalSeconds
}

// ShouldApply reports whether a newly computed interval differs enough from
// the current one to be worth applying.
func ShouldApply(current, candidate int64) bool {
	if current == 0 {
		return true
	}
	diff := candidate - current
	if diff < 0 {
		diff = -diff
	}
	return float64(diff)/float64(current) >= ChangeThreshold
}

// RecentItemsLimit bounds how many recent SubscriptionItem rows the
// activity-metrics scan reads, newest first.
const RecentItemsLimit = 100

// ComputeMetrics reduces a subscription's recent publishedAt timestamps
// (newest first, millisecond epoch) into the Metrics PollIntervalSeconds
// consumes.
func ComputeMetrics(now int64, recentPublishedAtDesc []int64) Metrics {
	const day = 24 * 60 * 60 * 1000
	var m Metrics
	for _, ts := range recentPublishedAtDesc {
		age := now - ts
		if age < 0 {
			continue
		}
		if age <= 7*day {
			m.ItemsLast7Days++
		}
		if age <= 30*day {
			m.ItemsLast30Days++
		}
	}
	if len(recentPublishedAtDesc) > 0 {
		days := int((now - recentPublishedAtDesc[0]) / day)
		if days < 0 {
			days = 0
		}
		m.DaysSinceLastItem = &days
	}
	return m
}
