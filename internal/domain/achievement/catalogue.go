// Package achievement holds the fixed achievement catalogue, the rule
// evaluator and the Achievement record.
package achievement

// Type identifies an achievement. There is at most one per (user, type).
type Type string

// Metric is the statistic a rule compares against its threshold.
type Metric string

const (
	MetricStreak     Metric = "streak"
	MetricPoints     Metric = "points"
	MetricActivities Metric = "activities"
)

// Rule is one row of the catalogue: when Metric reaches Threshold the
// achievement of Type is unlocked.
type Rule struct {
	Type        Type
	Metric      Metric
	Threshold   int
	Title       string
	Description string
	Icon        string
}

// Catalogue is the fixed rule table.
var Catalogue = []Rule{
	{"streak_3", MetricStreak, 3, "Getting Started", "Active 3 days in a row", "🌱"},
	{"streak_7", MetricStreak, 7, "Week Warrior", "Active 7 days in a row", "🔥"},
	{"streak_14", MetricStreak, 14, "Fortnight Focus", "Active 14 days in a row", "⚡"},
	{"streak_30", MetricStreak, 30, "Monthly Master", "Active 30 days in a row", "💪"},
	{"streak_100", MetricStreak, 100, "Century Streak", "Active 100 days in a row", "👑"},

	{"points_100", MetricPoints, 100, "First Hundred", "Earned 100 points", "⭐"},
	{"points_1000", MetricPoints, 1000, "Point Collector", "Earned 1,000 points", "🌟"},
	{"points_5000", MetricPoints, 5000, "High Scorer", "Earned 5,000 points", "🏅"},
	{"points_10000", MetricPoints, 10000, "Legend", "Earned 10,000 points", "🏆"},

	{"activities_1", MetricActivities, 1, "First Step", "Logged your first activity", "🎯"},
	{"activities_10", MetricActivities, 10, "Habit Builder", "Logged 10 activities", "📈"},
	{"activities_50", MetricActivities, 50, "Dedicated", "Logged 50 activities", "🎖️"},
	{"activities_100", MetricActivities, 100, "Centurion", "Logged 100 activities", "💯"},
}

// Lookup returns the catalogue rule for a type.
func Lookup(t Type) (Rule, bool) {
	for _, r := range Catalogue {
		if r.Type == t {
			return r, true
		}
	}
	return Rule{}, false
}
