// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package analytics

import (
	"fmt"
	"time"

	"github.com/tomtom215/safetyview/internal/models"
)

// truncate aligns t to the start of its UTC bucket.
func truncate(t time.Time, interval models.Interval) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	switch interval {
	case models.IntervalWeek:
		// Weekday() is 0 on Sunday; ISO weeks start on Monday.
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case models.IntervalMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return day
	}
}

// nextBucket returns the start of the bucket after start.
func nextBucket(start time.Time, interval models.Interval) time.Time {
	switch interval {
	case models.IntervalWeek:
		return start.AddDate(0, 0, 7)
	case models.IntervalMonth:
		return start.AddDate(0, 1, 0)
	default:
		return start.AddDate(0, 0, 1)
	}
}

// bucketStarts lists every bucket start in [trunc(from), to).
func bucketStarts(from, to time.Time, interval models.Interval) ([]time.Time, error) {
	var starts []time.Time
	for s := truncate(from, interval); s.Before(to); s = nextBucket(s, interval) {
		if len(starts) == models.MaxTimelineBuckets {
			return nil, &models.ValidationError{
				Field:   "interval",
				Message: fmt.Sprintf("range needs more than %d %s buckets", models.MaxTimelineBuckets, interval),
			}
		}
		starts = append(starts, s)
	}
	return starts, nil
}

// fillTimeline merges sparse store buckets into the full bucket sequence.
// Buckets outside starts are dropped.
func fillTimeline(starts []time.Time, sparse []models.BucketCount) []models.TimelinePoint {
	counts := make(map[time.Time]int64, len(sparse))
	for _, b := range sparse {
		counts[b.Start.UTC()] += b.Count
	}

	timeline := make([]models.TimelinePoint, len(starts))
	for i, s := range starts {
		timeline[i] = models.TimelinePoint{
			Date:  models.FormatBucket(s),
			Count: counts[s],
			Start: s,
		}
	}
	return timeline
}
