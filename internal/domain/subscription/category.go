package subscription

import "fmt"

// Category is one of the closed set of spending buckets a subscription
// belongs to. Unknown values read back from storage coerce to
// CategoryOthers; unknown values submitted by a client are rejected.
type Category string

const (
	CategoryEntertainment Category = "Entertainment"
	CategoryProductivity  Category = "Productivity & Software"
	CategoryGaming        Category = "Gaming"
	CategoryShopping      Category = "Shopping & Memberships"
	CategoryFitness       Category = "Fitness & Health"
	CategoryEducation     Category = "Education & Learning"
	CategoryFinance       Category = "Finance & Utilities"
	CategoryCloud         Category = "Cloud & Storage"
	CategoryNews          Category = "News & Reading"
	CategoryOthers        Category = "Others"
)

var allCategories = []Category{
	CategoryEntertainment,
	CategoryProductivity,
	CategoryGaming,
	CategoryShopping,
	CategoryFitness,
	CategoryEducation,
	CategoryFinance,
	CategoryCloud,
	CategoryNews,
	CategoryOthers,
}

// Categories returns the closed category set in display order.
func Categories() []Category {
	out := make([]Category, len(allCategories))
	copy(out, allCategories)
	return out
}

// ParseCategory validates a client-submitted category. Write paths use this
// so a typo becomes a 400, not a silently mislabeled record.
func ParseCategory(s string) (Category, error) {
	for _, c := range allCategories {
		if Category(s) == c {
			return c, nil
		}
	}

	return "", fmt.Errorf("%w: unknown category %q", ErrInvalidInput, s)
}

// NormalizeCategory coerces a stored value to a known category, falling
// back to Others. Read paths use this so a stale value in the database
// degrades to a visible default instead of an error.
func NormalizeCategory(s string) Category {
	if c, err := ParseCategory(s); err == nil {
		return c
	}

	return CategoryOthers
}

func (c Category) IsValid() bool {
	_, err := ParseCategory(string(c))
	return err == nil
}

func (c Category) String() string {
	return string(c)
}
