// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

/*
Package logging provides structured logging for SafetyView on top of zerolog.

A single global logger is configured once from main:

	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	logging.Info().Str("dataset", "robbery").Int("rows", n).Msg("Dataset committed")

Request, correlation and ingestion run IDs travel in context.Context and are
attached by Ctx:

	logging.Ctx(ctx).Warn().Msg("Row skipped")

Libraries that expect log/slog (suture, watermill) receive NewSlogLogger,
which writes through the same zerolog output.
*/
package logging
