package app

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ayusman/handswitch/internal/gesture"
	"github.com/ayusman/handswitch/internal/store"
)

// ApplySettings overlays persisted settings on cfg. Unknown keys are ignored;
// a value that does not parse is an error.
func ApplySettings(cfg gesture.Config, settings map[string]string) (gesture.Config, error) {
	var errs []error

	if v, ok := settings[store.SettingCooldown]; ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("setting %s: %w", store.SettingCooldown, err))
		} else {
			cfg.Cooldown = d
		}
	}
	if v, ok := settings[store.SettingOpenThreshold]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("setting %s: %w", store.SettingOpenThreshold, err))
		} else {
			cfg.Thresholds.Open = n
		}
	}
	if v, ok := settings[store.SettingClosedThreshold]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("setting %s: %w", store.SettingClosedThreshold, err))
		} else {
			cfg.Thresholds.Closed = n
		}
	}

	if err := errors.Join(errs...); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}
