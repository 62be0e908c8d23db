package billing

import (
	"errors"
	"fmt"
)

var ErrInvalidCycle = errors.New("invalid billing cycle")

// Cycle is the recurrence unit of a subscription.
type Cycle string

const (
	CycleMonthly Cycle = "monthly"
	CycleYearly  Cycle = "yearly"
)

func ParseCycle(s string) (Cycle, error) {
	switch Cycle(s) {
	case CycleMonthly, CycleYearly:
		return Cycle(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidCycle, s)
	}
}

func (c Cycle) IsValid() bool {
	return c == CycleMonthly || c == CycleYearly
}

func (c Cycle) String() string {
	return string(c)
}
