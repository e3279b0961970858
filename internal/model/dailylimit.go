package model

import "sort"

// DailyLimitCategory names a class of rate-limited admin action.
type DailyLimitCategory string

const (
	CategoryOpened    DailyLimitCategory = "opened"
	CategoryDisplayed DailyLimitCategory = "displayed"
)

// DailyLimitCategories lists every known category in a stable order.
var DailyLimitCategories = []DailyLimitCategory{CategoryOpened, CategoryDisplayed}

// ParseDailyLimitCategory returns the category named by s.
func ParseDailyLimitCategory(s string) (DailyLimitCategory, bool) {
	for _, c := range DailyLimitCategories {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// DailyLimitConfig holds the alert and block thresholds for one category.
type DailyLimitConfig struct {
	Alert int `json:"alert"`
	Block int `json:"block"`
}

// DailyLimitUpdate is a partially specified DailyLimitConfig.
type DailyLimitUpdate struct {
	Alert *int `json:"alert,omitempty"`
	Block *int `json:"block,omitempty"`
}

// Complete reports whether both thresholds are present.
func (u DailyLimitUpdate) Complete() bool { return u.Alert != nil && u.Block != nil }

// Empty reports whether neither threshold is present.
func (u DailyLimitUpdate) Empty() bool { return u.Alert == nil && u.Block == nil }

// Merge applies the present fields of u over base.
func (u DailyLimitUpdate) Merge(base DailyLimitConfig) DailyLimitConfig {
	if u.Alert != nil {
		base.Alert = *u.Alert
	}
	if u.Block != nil {
		base.Block = *u.Block
	}
	return base
}

// DailyLimitOverrides maps a category to an admin's own thresholds.
type DailyLimitOverrides map[DailyLimitCategory]DailyLimitConfig

// Categories returns the categories present in o, sorted.
func (o DailyLimitOverrides) Categories() []DailyLimitCategory {
	out := make([]DailyLimitCategory, 0, len(o))
	for c := range o {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// LevelDailyLimit is the level-wide default for one (level, category) pair.
type LevelDailyLimit struct {
	Level    int                `json:"level" db:"level"`
	Category DailyLimitCategory `json:"category" db:"category"`
	Alert    int                `json:"alert" db:"alert_threshold"`
	Block    int                `json:"block" db:"block_threshold"`
}

// Config returns the thresholds of l.
func (l LevelDailyLimit) Config() DailyLimitConfig {
	return DailyLimitConfig{Alert: l.Alert, Block: l.Block}
}
