// Package reminder derives display urgency for subscription due dates.
package reminder

import (
	"fmt"

	"github.com/subsavvy/subsavvy/internal/lib/civil"
)

// Tier is the urgency bucket of a due date relative to today.
type Tier string

const (
	TierOverdue     Tier = "overdue"
	TierDueToday    Tier = "due_today"
	TierDueTomorrow Tier = "due_tomorrow"
	TierDueSoon     Tier = "due_soon"
	TierUpcoming    Tier = "upcoming"
)

// Label returns the human-readable tag shown next to a reminder.
func (t Tier) Label() string {
	switch t {
	case TierOverdue:
		return "Overdue"
	case TierDueToday:
		return "Due Today"
	case TierDueTomorrow:
		return "Tomorrow"
	case TierDueSoon:
		return "Within a week"
	default:
		return "Upcoming"
	}
}

// Classification is the full classifier output. CanMarkPaidNow is the
// eligibility flag for the "mark as paid" quick action; it is derived here,
// once, so callers never re-derive it from the tier ad hoc.
type Classification struct {
	Tier           Tier
	DaysUntilDue   int
	CanMarkPaidNow bool
}

// Classify buckets a due date against today. Both dates are calendar dates,
// so time-of-day never factors in. First matching rule wins:
// past dates are overdue, then due today, due tomorrow, due within seven
// days, and everything further out is upcoming.
func Classify(dueDate, today civil.Date) (Classification, error) {
	if !dueDate.IsValid() {
		return Classification{}, fmt.Errorf("%w: due date %+v", civil.ErrInvalidDate, dueDate)
	}
	if !today.IsValid() {
		return Classification{}, fmt.Errorf("%w: today %+v", civil.ErrInvalidDate, today)
	}

	days := today.DaysUntil(dueDate)

	var tier Tier
	switch {
	case days < 0:
		tier = TierOverdue
	case days == 0:
		tier = TierDueToday
	case days == 1:
		tier = TierDueTomorrow
	case days <= 7:
		tier = TierDueSoon
	default:
		tier = TierUpcoming
	}

	return Classification{
		Tier:           tier,
		DaysUntilDue:   days,
		CanMarkPaidNow: tier == TierDueToday,
	}, nil
}
