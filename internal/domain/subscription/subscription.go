package subscription

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/subsavvy/subsavvy/internal/billing"
	"github.com/subsavvy/subsavvy/internal/lib/civil"
)

var (
	ErrNotFound           = errors.New("subscription not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrPreconditionFailed = errors.New("precondition failed")
)

type Subscription struct {
	ID           uuid.UUID
	Name         string
	Cost         decimal.Decimal
	Category     Category
	BillingCycle billing.Cycle
	NextPayment  civil.Date
	Notes        string
	CreatedAt    time.Time
}

var twelve = decimal.NewFromInt(12)

// MonthlyCost is the subscription's cost normalized to one month.
func (s Subscription) MonthlyCost() decimal.Decimal {
	if s.BillingCycle == billing.CycleYearly {
		return s.Cost.DivRound(twelve, 2)
	}
	return s.Cost
}

// AnnualCost is the subscription's cost normalized to one year.
func (s Subscription) AnnualCost() decimal.Decimal {
	if s.BillingCycle == billing.CycleYearly {
		return s.Cost
	}
	return s.Cost.Mul(twelve)
}

// CreateInput carries a new subscription. FirstPayment is the anchor the
// user enters; the service derives the stored next payment from it.
type CreateInput struct {
	Name         string
	Cost         decimal.Decimal
	Category     Category
	BillingCycle billing.Cycle
	FirstPayment civil.Date
	Notes        string
}

func (in CreateInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: name must not be empty", ErrInvalidInput)
	}
	if in.Cost.IsNegative() {
		return fmt.Errorf("%w: cost must not be negative", ErrInvalidInput)
	}
	if !in.Category.IsValid() {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidInput, in.Category)
	}
	if !in.BillingCycle.IsValid() {
		return fmt.Errorf("%w: unknown billing cycle %q", ErrInvalidInput, in.BillingCycle)
	}
	if !in.FirstPayment.IsValid() {
		return fmt.Errorf("%w: first payment date is not a valid calendar date", ErrInvalidInput)
	}

	return nil
}

// UpdateInput carries an edit. NextPayment is the date from the form; the
// service replaces it with the resolved due date before the input reaches
// storage, so a cycle change can never persist the user-typed date.
type UpdateInput struct {
	Name         string
	Cost         decimal.Decimal
	Category     Category
	BillingCycle billing.Cycle
	NextPayment  civil.Date
	Notes        string
}

func (in UpdateInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: name must not be empty", ErrInvalidInput)
	}
	if in.Cost.IsNegative() {
		return fmt.Errorf("%w: cost must not be negative", ErrInvalidInput)
	}
	if !in.Category.IsValid() {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidInput, in.Category)
	}
	if !in.BillingCycle.IsValid() {
		return fmt.Errorf("%w: unknown billing cycle %q", ErrInvalidInput, in.BillingCycle)
	}
	if !in.NextPayment.IsValid() {
		return fmt.Errorf("%w: next payment date is not a valid calendar date", ErrInvalidInput)
	}

	return nil
}

type ListFilter struct {
	Category     *Category
	BillingCycle *billing.Cycle
	DueBefore    *civil.Date
	Limit        int
	Offset       int
}

// SortByNextPayment orders subscriptions ascending by due date in place.
// The sort is stable: records sharing a date keep their input order.
func SortByNextPayment(subs []Subscription) {
	sort.SliceStable(subs, func(i, j int) bool {
		return subs[i].NextPayment.Before(subs[j].NextPayment)
	})
}
