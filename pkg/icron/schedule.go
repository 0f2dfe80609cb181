// Package icron describes when a cron schedule last fired and fires next.
package icron

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// maxLookback bounds the search for the previous trigger.
const maxLookback = 366 * 24 * time.Hour

type TriggerInfo struct {
	Expression string
	Next       time.Time
	Last       time.Time

	TimeSinceLast time.Duration
	TimeUntilNext time.Duration
}

// String renders the info for log lines.
func (t *TriggerInfo) String() string {
	if t.Last.IsZero() {
		return fmt.Sprintf("%q next at %s (in %s)", t.Expression, t.Next.Format(time.RFC3339), t.TimeUntilNext.Round(time.Second))
	}
	return fmt.Sprintf("%q next at %s (in %s), last at %s",
		t.Expression, t.Next.Format(time.RFC3339), t.TimeUntilNext.Round(time.Second), t.Last.Format(time.RFC3339))
}

// Parse parses a standard five-field expression or a descriptor such as
// @daily.
func Parse(expr string) (cron.Schedule, error) {
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}
	return schedule, nil
}

// GetTriggerInfo reports the triggers of expr around refTime. Last is zero
// when the schedule did not fire within the past year.
func GetTriggerInfo(expr string, refTime time.Time) (*TriggerInfo, error) {
	schedule, err := Parse(expr)
	if err != nil {
		return nil, err
	}

	next := schedule.Next(refTime)
	last := previous(schedule, refTime)

	info := &TriggerInfo{
		Expression:    expr,
		Next:          next,
		Last:          last,
		TimeUntilNext: next.Sub(refTime),
	}
	if !last.IsZero() {
		info.TimeSinceLast = refTime.Sub(last)
	}
	return info, nil
}

// previous finds the latest activation at or before ref. It widens the
// window until one activation falls inside, then walks forward to the last.
func previous(schedule cron.Schedule, ref time.Time) time.Time {
	for window := time.Hour; window <= 2*maxLookback; window *= 2 {
		if window > maxLookback {
			window = maxLookback
		}
		t := schedule.Next(ref.Add(-window).Add(-time.Second))
		if t.IsZero() || t.After(ref) {
			if window == maxLookback {
				return time.Time{}
			}
			continue
		}
		for {
			n := schedule.Next(t)
			if n.IsZero() || n.After(ref) {
				return t
			}
			t = n
		}
	}
	return time.Time{}
}
