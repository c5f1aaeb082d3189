// Package points contains the point economy: categories, the activity point
// calculator, per-user points configuration, the ledger entry and the
// statistics aggregate it maintains.
package points

import "strings"

// Category is the kind of activity an entry belongs to.
type Category string

const (
	CategoryFitness   Category = "fitness"
	CategoryMindset   Category = "mindset"
	CategoryNutrition Category = "nutrition"
	CategoryWork      Category = "work"
	CategorySocial    Category = "social"

	// CategoryBonus is accepted by the ledger only, for awards that are not
	// tied to an activity category.
	CategoryBonus Category = "bonus"
)

// ActivityCategories lists the categories a user can log and configure.
var ActivityCategories = []Category{
	CategoryFitness,
	CategoryMindset,
	CategoryNutrition,
	CategoryWork,
	CategorySocial,
}

// ParseCategory normalizes and validates an activity category.
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	return c, c.IsActivity()
}

// IsActivity reports whether c is one of the five activity categories.
func (c Category) IsActivity() bool {
	switch c {
	case CategoryFitness, CategoryMindset, CategoryNutrition, CategoryWork, CategorySocial:
		return true
	}
	return false
}

// IsLedger reports whether c may appear on a ledger entry.
func (c Category) IsLedger() bool {
	return c.IsActivity() || c == CategoryBonus
}

func (c Category) String() string { return string(c) }

// Intensity scales the points of an activity.
type Intensity string

const (
	IntensityLight   Intensity = "light"
	IntensityNormal  Intensity = "normal"
	IntensityIntense Intensity = "intense"
)

// Factor returns the multiplier for the intensity and whether it is known.
func (i Intensity) Factor() (float64, bool) {
	switch i {
	case IntensityLight:
		return 0.7, true
	case IntensityNormal:
		return 1.0, true
	case IntensityIntense:
		return 1.5, true
	}
	return 0, false
}

// Source says what produced a ledger entry.
type Source string

const (
	SourceActivity      Source = "activity"
	SourceAward         Source = "award"
	SourceContentUsage  Source = "content_usage"
	SourceCreatorReward Source = "creator_reward"
)

// IsValid checks the source is known.
func (s Source) IsValid() bool {
	switch s {
	case SourceActivity, SourceAward, SourceContentUsage, SourceCreatorReward:
		return true
	}
	return false
}
