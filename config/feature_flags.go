package config

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// FeatureFlags manages feature toggles with percentage rollout by user id.
type FeatureFlags struct {
	mu       sync.RWMutex
	features map[string]*Feature
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// Users are assigned by a hash of their ID.
	RolloutPercent int
}

// Predefined feature flag names.
const (
	FeatureCreatorRewards       = "rewards.creator"             // Pay creators when their content is used
	FeatureLeaderboardCache     = "leaderboard.cache"           // Cache all-time global rankings in Redis
	FeatureLeaderboardRankDelta = "leaderboard.position_change" // Friends-scope position change
	FeatureChangeNotifications  = "notify.changes"              // Publish events to Redis pub/sub
)

// LoadFeatureFlags builds the flag set from defaults and FEATURE_* variables.
// Format: FEATURE_<NAME>=true|false|<percent>
// Example: FEATURE_REWARDS_CREATOR=false
func LoadFeatureFlags(v *viper.Viper) *FeatureFlags {
	ff := &FeatureFlags{features: make(map[string]*Feature)}
	ff.initializeDefaults()
	if v != nil {
		ff.loadFrom(v)
	}
	return ff
}

// DefaultFeatureFlags returns every flag at its built-in default.
func DefaultFeatureFlags() *FeatureFlags {
	return LoadFeatureFlags(nil)
}

func (ff *FeatureFlags) initializeDefaults() {
	ff.add(FeatureCreatorRewards, "Credit the creator of shared content on use", true)
	ff.add(FeatureLeaderboardCache, "Cache all-time global rankings", true)
	ff.add(FeatureLeaderboardRankDelta, "Report friends-scope position change", true)
	ff.add(FeatureChangeNotifications, "Publish change notifications", true)
}

func (ff *FeatureFlags) add(name, description string, enabled bool) {
	percent := 0
	if enabled {
		percent = 100
	}
	ff.features[name] = &Feature{
		Name:           name,
		Description:    description,
		Enabled:        enabled,
		RolloutPercent: percent,
	}
}

func (ff *FeatureFlags) loadFrom(v *viper.Viper) {
	for name, feature := range ff.features {
		val := v.GetString(featureNameToEnvKey(name))
		if val == "" {
			continue
		}
		if b, err := strconv.ParseBool(val); err == nil {
			feature.Enabled = b
			if b {
				feature.RolloutPercent = 100
			} else {
				feature.RolloutPercent = 0
			}
			continue
		}
		if p, err := strconv.Atoi(val); err == nil && p >= 0 && p <= 100 {
			feature.Enabled = p > 0
			feature.RolloutPercent = p
		}
	}
}

// "rewards.creator" -> "FEATURE_REWARDS_CREATOR"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled reports whether a feature is globally on.
func (ff *FeatureFlags) IsEnabled(featureName string) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	feature, ok := ff.features[featureName]
	return ok && feature.Enabled
}

// IsEnabledFor applies the rollout percentage to a specific user.
func (ff *FeatureFlags) IsEnabledFor(featureName, userID string) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	feature, ok := ff.features[featureName]
	if !ok || !feature.Enabled {
		return false
	}
	if feature.RolloutPercent >= 100 {
		return true
	}

	h := fnv.New32a()
	h.Write([]byte(featureName + ":" + userID))
	return int(h.Sum32()%100) < feature.RolloutPercent
}

// SetEnabled toggles a feature at runtime.
func (ff *FeatureFlags) SetEnabled(featureName string, enabled bool) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return &FeatureFlagError{Feature: featureName, Message: "unknown feature"}
	}
	feature.Enabled = enabled
	if enabled {
		feature.RolloutPercent = 100
	} else {
		feature.RolloutPercent = 0
	}
	return nil
}

// Names lists all known flags in order.
func (ff *FeatureFlags) Names() []string {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	names := make([]string, 0, len(ff.features))
	for name := range ff.features {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FeatureFlagError represents a feature flag operation error.
type FeatureFlagError struct {
	Feature string
	Message string
}

func (e *FeatureFlagError) Error() string {
	return fmt.Sprintf("feature flag %q: %s", e.Feature, e.Message)
}
