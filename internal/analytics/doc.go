// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

/*
Package analytics derives totals, category breakdowns and gap-filled timelines
from the incident store.

The engine never writes. Counting happens in DuckDB (see
database.CountAnalytics, which reads totals and buckets in one transaction);
this package validates inputs, aligns buckets to UTC calendar boundaries
and fills empty buckets with zero so that every timeline covers
[trunc(from), to) without holes.

Bucket alignment:

  - day: UTC midnight
  - week: Monday 00:00 UTC (ISO week)
  - month: first day of the month, 00:00 UTC

Window and neighbourhood comparisons run both sides concurrently and report
diff = a - b and pct = diff / b * 100, with pct null when b is zero.

Neighbourhood lookups go through a bounded LRU so repeated comparisons of the
same areas do not hit the store.
*/
package analytics
