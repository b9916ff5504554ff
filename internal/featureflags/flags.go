// Package featureflags provides runtime kill switches for the dashboard.
package featureflags

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Well-known feature flag keys.
const (
	// FlagPauseAlertFanout stops new alerts from reaching the alert sink.
	// Alerts seen while paused are published once the flag is cleared.
	FlagPauseAlertFanout = "pause_alert_fanout"

	// FlagDisableOriginControls rejects scenario switches and alert clears.
	FlagDisableOriginControls = "disable_origin_controls"

	// FlagDisableAssistant rejects insight generation and assistant prompts.
	FlagDisableAssistant = "disable_assistant"
)

// Flag is a boolean switch with the time it last changed.
type Flag struct {
	Key       string    `json:"key"`
	Enabled   bool      `json:"enabled"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// On reports whether f is set. A nil flag is off.
func (f *Flag) On() bool {
	return f != nil && f.Enabled
}

// Known reports whether key is a well-known flag.
func Known(key string) bool {
	switch key {
	case FlagPauseAlertFanout, FlagDisableOriginControls, FlagDisableAssistant:
		return true
	}
	return false
}

// DefaultFlags returns every well-known flag switched off.
func DefaultFlags() map[string]*Flag {
	return map[string]*Flag{
		FlagPauseAlertFanout:      {Key: FlagPauseAlertFanout},
		FlagDisableOriginControls: {Key: FlagDisableOriginControls},
		FlagDisableAssistant:      {Key: FlagDisableAssistant},
	}
}

// ParseOverrides reads "key=bool" pairs, as given in FEATURE_FLAGS. A bare key
// means true.
func ParseOverrides(pairs []string) (map[string]bool, error) {
	out := make(map[string]bool, len(pairs))
	for _, pair := range pairs {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		key, raw, hasValue := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !Known(key) {
			return nil, fmt.Errorf("unknown feature flag %q", key)
		}

		value := true
		if hasValue {
			v, err := strconv.ParseBool(strings.TrimSpace(raw))
			if err != nil {
				return nil, fmt.Errorf("feature flag %s: %w", key, err)
			}
			value = v
		}
		out[key] = value
	}
	return out, nil
}
