// Package billing computes subscription due dates. Every function here is a
// pure function of its arguments: the caller owns persistence and decides
// when a computed date becomes the subscription's next payment.
package billing

import (
	"fmt"

	"github.com/subsavvy/subsavvy/internal/lib/civil"
)

// AddCycle advances a date by exactly one cycle unit using calendar-correct
// arithmetic: day-of-month is preserved and clamped to the last valid day of
// the target month (Jan 31 + monthly = Feb 28/29; Feb 29 + yearly = Feb 28).
func AddCycle(d civil.Date, cycle Cycle) (civil.Date, error) {
	if !d.IsValid() {
		return civil.Date{}, fmt.Errorf("%w: %+v", civil.ErrInvalidDate, d)
	}

	switch cycle {
	case CycleMonthly:
		return d.AddMonths(1), nil
	case CycleYearly:
		return d.AddYears(1), nil
	default:
		return civil.Date{}, fmt.Errorf("%w: %q", ErrInvalidCycle, cycle)
	}
}

// ScheduleFirstPayment derives the first due date for a new subscription.
// The anchor is the date the user names as the first charge; the schedule
// starts one full cycle after it, so a subscription created today with
// today's date as anchor is next charged a month (or year) from now.
func ScheduleFirstPayment(anchor civil.Date, cycle Cycle) (civil.Date, error) {
	return AddCycle(anchor, cycle)
}

// AdvanceOnPayment rolls the due date forward by one cycle after a payment.
// It is deliberately not idempotent: each call stands for one real payment
// event, so the caller must apply it at most once per payment.
func AdvanceOnPayment(currentNextPayment civil.Date, cycle Cycle) (civil.Date, error) {
	return AddCycle(currentNextPayment, cycle)
}

// ResolveOnEdit decides the due date after an edit. When the cycle is
// unchanged the user-supplied date wins verbatim. When the cycle changes the
// user-supplied date is ignored and the new due date is one unit of the new
// cycle measured from the previous due date, so switching cycles can never
// silently reset the schedule. A zero previous date means a new record, in
// which case the user-supplied date acts as the first-payment anchor.
func ResolveOnEdit(previousCycle Cycle, previousNextPayment civil.Date, newCycle Cycle, userSuppliedNextPayment civil.Date) (civil.Date, error) {
	if !newCycle.IsValid() {
		return civil.Date{}, fmt.Errorf("%w: %q", ErrInvalidCycle, newCycle)
	}

	if previousNextPayment.IsZero() {
		return ScheduleFirstPayment(userSuppliedNextPayment, newCycle)
	}

	if newCycle == previousCycle {
		if !userSuppliedNextPayment.IsValid() {
			return civil.Date{}, fmt.Errorf("%w: %+v", civil.ErrInvalidDate, userSuppliedNextPayment)
		}
		return userSuppliedNextPayment, nil
	}

	return AdvanceOnPayment(previousNextPayment, newCycle)
}
