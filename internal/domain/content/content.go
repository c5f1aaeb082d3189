// Package content models shared content that earns its creator points when
// other users consume it.
package content

import (
	"context"
	"strings"

	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/points"
)

// Type is the content kind tag.
type Type string

const (
	TypeRoutine  Type = "routine"
	TypeArticle  Type = "article"
	TypeMealPlan Type = "meal_plan"
)

// ParseType normalizes and validates a content type.
func ParseType(s string) (Type, bool) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case TypeRoutine, TypeArticle, TypeMealPlan:
		return t, true
	}
	return t, false
}

// Content is the capability every content kind exposes to the reward path.
type Content interface {
	ContentID() string
	Kind() Type
	CreatorID() string
	Category() points.Category
	UsageCount() int
}

// Item holds the fields shared by all content kinds.
type Item struct {
	ID      string          `json:"id"`
	Creator string          `json:"creator_id"`
	Cat     points.Category `json:"category"`
	Title   string          `json:"title"`
	Usage   int             `json:"usage_count"`
}

func (i Item) ContentID() string         { return i.ID }
func (i Item) CreatorID() string         { return i.Creator }
func (i Item) Category() points.Category { return i.Cat }
func (i Item) UsageCount() int           { return i.Usage }

// Routine is a shared workout routine.
type Routine struct {
	Item
	Exercises       []string `json:"exercises,omitempty"`
	DurationMinutes int      `json:"duration_minutes,omitempty"`
}

func (Routine) Kind() Type { return TypeRoutine }

// Article is a shared article.
type Article struct {
	Item
	ReadingMinutes int `json:"reading_minutes,omitempty"`
}

func (Article) Kind() Type { return TypeArticle }

// MealPlan is a shared meal plan.
type MealPlan struct {
	Item
	Meals    []string `json:"meals,omitempty"`
	Calories int      `json:"calories,omitempty"`
}

func (MealPlan) Kind() Type { return TypeMealPlan }

// New builds the content value for a type tag.
func New(t Type, item Item) (Content, bool) {
	switch t {
	case TypeRoutine:
		return Routine{Item: item}, true
	case TypeArticle:
		return Article{Item: item}, true
	case TypeMealPlan:
		return MealPlan{Item: item}, true
	}
	return nil, false
}

// WithUsage returns a copy of c with its usage counter set to n.
func WithUsage(c Content, n int) Content {
	switch v := c.(type) {
	case Routine:
		v.Usage = n
		return v
	case Article:
		v.Usage = n
		return v
	case MealPlan:
		v.Usage = n
		return v
	}
	return c
}

// Repository stores shared content.
type Repository interface {
	Find(ctx context.Context, t Type, id string) (Content, error)
	Save(ctx context.Context, c Content) error

	// IncrementUsage adds one to usage_count and returns the new value.
	IncrementUsage(ctx context.Context, t Type, id string) (int, error)
}
