package points

import (
	"fmt"

	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/shared"
)

// CategoryConfig is the base points and personal multiplier for a category.
type CategoryConfig struct {
	Base       int     `json:"base"`
	Multiplier float64 `json:"multiplier"`
}

// Validate checks base is 0-500 and multiplier is positive.
func (c CategoryConfig) Validate() error {
	if c.Base < MinBase || c.Base > MaxBase {
		return shared.NewDomainError("points", "ValidateConfig", shared.ErrValueOutOfRange,
			fmt.Sprintf("base must be between %d and %d", MinBase, MaxBase))
	}
	if !validMultiplier(c.Multiplier) {
		return shared.NewDomainError("points", "ValidateConfig", shared.ErrValueOutOfRange, multiplierRangeMessage)
	}
	return nil
}

// DefaultCategoryConfigs is used for any category a user has not configured.
var DefaultCategoryConfigs = map[Category]CategoryConfig{
	CategoryFitness:   {Base: 50, Multiplier: 1.0},
	CategoryMindset:   {Base: 30, Multiplier: 1.0},
	CategoryNutrition: {Base: 25, Multiplier: 1.0},
	CategoryWork:      {Base: 40, Multiplier: 1.0},
	CategorySocial:    {Base: 20, Multiplier: 1.0},
}

// ActivityPointsConfig is a user's per-category point settings.
type ActivityPointsConfig struct {
	UserID     string                      `json:"user_id"`
	Categories map[Category]CategoryConfig `json:"categories"`
}

// NewDefaultConfig returns a config containing the default table.
func NewDefaultConfig(userID string) *ActivityPointsConfig {
	cfg := &ActivityPointsConfig{
		UserID:     userID,
		Categories: make(map[Category]CategoryConfig, len(DefaultCategoryConfigs)),
	}
	for c, cc := range DefaultCategoryConfigs {
		cfg.Categories[c] = cc
	}
	return cfg
}

// For returns the config for a category, falling back to the default.
func (c *ActivityPointsConfig) For(category Category) CategoryConfig {
	if c != nil {
		if cc, ok := c.Categories[category]; ok {
			return cc
		}
	}
	return DefaultCategoryConfigs[category]
}

// Set replaces one category's config after validating it.
func (c *ActivityPointsConfig) Set(category Category, cc CategoryConfig) error {
	if !category.IsActivity() {
		return shared.NewDomainError("points", "SetConfig", shared.ErrInvalidInput, "unknown category "+string(category))
	}
	if err := cc.Validate(); err != nil {
		return err
	}
	if c.Categories == nil {
		c.Categories = make(map[Category]CategoryConfig)
	}
	c.Categories[category] = cc
	return nil
}

// PointsFor applies the calculator to the user's config for a category.
func (c *ActivityPointsConfig) PointsFor(category Category, intensity Intensity) (int, error) {
	if !category.IsActivity() {
		return 0, shared.NewDomainError("points", "PointsFor", shared.ErrInvalidInput, "unknown category "+string(category))
	}
	cc := c.For(category)
	return Calculate(cc.Base, cc.Multiplier, intensity)
}
