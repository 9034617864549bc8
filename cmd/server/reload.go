// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package main

import (
	"github.com/tomtom215/safetyview/internal/config"
	"github.com/tomtom215/safetyview/internal/logging"
)

// watchConfig re-applies logging settings when the config file changes.
// An empty path means no file is in use.
func watchConfig(path string) {
	if path == "" {
		return
	}
	err := config.WatchConfigFile(path, func() {
		reloadLogging(config.Load)
	})
	if err != nil {
		logging.Warn().Err(err).Str("path", path).Msg("Config file watch unavailable")
		return
	}
	logging.Info().Str("path", path).Msg("Watching config file for logging changes")
}

// reloadLogging loads a fresh configuration and applies its logging section.
// An invalid file leaves the current settings in place.
func reloadLogging(load func() (*config.Config, error)) bool {
	cfg, err := load()
	if err != nil {
		logging.Warn().Err(err).Msg("Ignoring config change, reload failed")
		return false
	}
	logging.Init(loggingConfig(cfg))
	logging.Info().
		Str("level", cfg.Logging.Level).
		Str("format", cfg.Logging.Format).
		Msg("Logging configuration reloaded")
	return true
}
