// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package database

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/goccy/go-json"

	"github.com/tomtom215/safetyview/internal/models"
)

func TestLoadIncidentsIsIdempotent(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()

	rows := []models.Incident{
		incident("GO-1", "2024-03-01T10:00:00Z", -79.38, 43.65),
		incident("GO-2", "2024-03-02T10:00:00Z", -79.39, 43.66),
		incident("GO-3", "2024-03-03T10:00:00Z", -79.40, 43.67),
	}

	for run := 0; run < 3; run++ {
		mustLoad(t, db, "mci", rows...)
		n, err := db.CountIncidents(ctx, "mci")
		if err != nil {
			t.Fatalf("CountIncidents() error = %v", err)
		}
		if n != 3 {
			t.Fatalf("run %d: CountIncidents() = %d, want 3", run, n)
		}
	}
}

func TestLoadIncidentsDedupsWithinBatch(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()

	older := incident("GO-1", "2024-03-01T10:00:00Z", -79.38, 43.65)
	newer := incident("GO-1", "2024-03-05T10:00:00Z", -79.38, 43.65)
	newer.Offence = "Robbery - Business"

	res := mustLoad(t, db, "mci", newer, older)
	if res.Received != 2 || res.Deduped != 1 {
		t.Errorf("LoadResult = %+v, want Received=2 Deduped=1", res)
	}

	got, err := db.GetIncident(ctx, "mci", "GO-1")
	if err != nil {
		t.Fatalf("GetIncident() error = %v", err)
	}
	if !got.ReportTimestamp.Equal(newer.ReportTimestamp) {
		t.Errorf("report timestamp = %v, want %v", got.ReportTimestamp, newer.ReportTimestamp)
	}
	if got.Offence != "Robbery - Business" {
		t.Errorf("offence = %q, want the later row's value", got.Offence)
	}
}

func TestLoadIncidentsTiesKeepLastSent(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)

	first := incident("GO-1", "2024-03-01T10:00:00Z", -79.38, 43.65)
	second := first
	second.Category = "Assault"
	mustLoad(t, db, "mci", first, second)

	got, err := db.GetIncident(context.Background(), "mci", "GO-1")
	if err != nil {
		t.Fatalf("GetIncident() error = %v", err)
	}
	if got.Category != "Assault" {
		t.Errorf("category = %q, want Assault", got.Category)
	}
}

func TestLoadIncidentsRefreshesButNeverRegresses(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()

	mustLoad(t, db, "mci", incident("GO-1", "2024-03-01T10:00:00Z", -79.38, 43.65))

	updated := incident("GO-1", "2024-03-02T10:00:00Z", -79.30, 43.70)
	updated.Category = "Assault"
	mustLoad(t, db, "mci", updated)

	got, err := db.GetIncident(ctx, "mci", "GO-1")
	if err != nil {
		t.Fatalf("GetIncident() error = %v", err)
	}
	if got.Category != "Assault" || got.Longitude != -79.30 {
		t.Errorf("incident not refreshed: %+v", got)
	}

	stale := incident("GO-1", "2024-02-01T10:00:00Z", -79.00, 43.00)
	stale.Category = "Theft Over"
	mustLoad(t, db, "mci", stale)

	got, err = db.GetIncident(ctx, "mci", "GO-1")
	if err != nil {
		t.Fatalf("GetIncident() error = %v", err)
	}
	if got.Category != "Assault" {
		t.Errorf("older upstream row overwrote newer stored row: %+v", got)
	}
}

func TestLoadIncidentsForcesDataset(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()

	row := incident("GO-1", "2024-03-01T10:00:00Z", -79.38, 43.65)
	row.Dataset = "something-else"
	mustLoad(t, db, "mci", row)
	mustLoad(t, db, "shootings", incident("GO-1", "2024-03-01T10:00:00Z", -79.38, 43.65))

	for _, ds := range []string{"mci", "shootings"} {
		n, err := db.CountIncidents(ctx, ds)
		if err != nil {
			t.Fatalf("CountIncidents(%s) error = %v", ds, err)
		}
		if n != 1 {
			t.Errorf("CountIncidents(%s) = %d, want 1", ds, n)
		}
	}
	if n, _ := db.CountIncidents(ctx, "something-else"); n != 0 {
		t.Errorf("rows stored under caller-supplied dataset: %d", n)
	}
}

func TestLoadIncidentsEmptyBatch(t *testing.T) {
	t.Parallel()
	db := newFromConn(nil, false)

	res, err := db.LoadIncidents(context.Background(), "mci", nil)
	if err != nil {
		t.Fatalf("LoadIncidents(nil) error = %v", err)
	}
	if res.Received != 0 || res.Upserted != 0 {
		t.Errorf("LoadResult = %+v, want zero", res)
	}
}

func TestLoadIncidentsRollsBackOnFailure(t *testing.T) {
	t.Parallel()

	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer conn.Close()
	db := newFromConn(conn, false)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE OR REPLACE TEMP TABLE stage_incidents")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	prep := mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO stage_incidents"))
	prep.ExpectExec().WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err = db.LoadIncidents(context.Background(), "mci",
		[]models.Incident{incident("GO-1", "2024-03-01T10:00:00Z", -79.38, 43.65)})

	var conflict *models.LoadConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("LoadIncidents() error = %v, want *LoadConflictError", err)
	}
	if conflict.Dataset != "mci" || conflict.Rows != 1 {
		t.Errorf("LoadConflictError = %+v", conflict)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestLoadIncidentsRetriesTransactionConflicts(t *testing.T) {
	t.Parallel()

	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer conn.Close()
	db := newFromConn(conn, false)
	db.SetLoadRetries(2)

	for i := 0; i < 2; i++ {
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("CREATE OR REPLACE TEMP TABLE stage_incidents")).
			WillReturnError(errors.New("TransactionContext Error: Transaction conflict on incidents"))
		mock.ExpectRollback()
	}

	_, err = db.LoadIncidents(context.Background(), "mci",
		[]models.Incident{incident("GO-1", "2024-03-01T10:00:00Z", -79.38, 43.65)})
	var conflict *models.LoadConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("LoadIncidents() error = %v, want *LoadConflictError", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expected two attempts: %v", err)
	}
}

func square(west, south, east, north float64) models.GeoJSONGeometry {
	ring := [][]float64{{west, south}, {east, south}, {east, north}, {west, north}, {west, south}}
	raw, err := json.Marshal([][][]float64{ring})
	if err != nil {
		panic(err)
	}
	return models.GeoJSONGeometry{Type: models.GeometryPolygon, Coordinates: raw}
}

func neighbourhood(code, short, name string, west, south, east, north float64) models.NeighbourhoodPolygon {
	return models.NeighbourhoodPolygon{
		AreaCode:  code,
		ShortCode: short,
		Name:      name,
		Geometry:  square(west, south, east, north),
		Bounds:    models.BBox{West: west, South: south, East: east, North: north},
	}
}

func TestLoadNeighbourhoodsUpsertsByAreaCode(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()

	rows := []models.NeighbourhoodPolygon{
		neighbourhood("001", "1", "West Humber", -79.60, 43.70, -79.55, 43.75),
		neighbourhood("002", "2", "Mount Olive", -79.55, 43.70, -79.50, 43.75),
	}
	for i := 0; i < 2; i++ {
		if _, err := db.LoadNeighbourhoods(ctx, rows); err != nil {
			t.Fatalf("LoadNeighbourhoods() error = %v", err)
		}
	}
	n, err := db.CountNeighbourhoods(ctx)
	if err != nil {
		t.Fatalf("CountNeighbourhoods() error = %v", err)
	}
	if n != 2 {
		t.Errorf("CountNeighbourhoods() = %d, want 2", n)
	}

	renamed := neighbourhood("001", "1", "West Humber-Clairville", -79.60, 43.70, -79.55, 43.75)
	if _, err := db.LoadNeighbourhoods(ctx, []models.NeighbourhoodPolygon{renamed}); err != nil {
		t.Fatalf("LoadNeighbourhoods() error = %v", err)
	}
	got, err := db.GetNeighbourhood(ctx, "001")
	if err != nil {
		t.Fatalf("GetNeighbourhood() error = %v", err)
	}
	if got.Name != "West Humber-Clairville" {
		t.Errorf("name = %q, want refreshed value", got.Name)
	}
	if got.Bounds != renamed.Bounds {
		t.Errorf("bounds = %+v, want %+v", got.Bounds, renamed.Bounds)
	}
}

func TestRefreshAggregates(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()

	now := time.Now().UTC()
	recent := now.Add(-48 * time.Hour).Format(time.RFC3339)
	a := incident("GO-1", recent, -79.38, 43.65)
	a.NeighbourhoodCode = strPtr("001")
	b := incident("GO-2", recent, -79.38, 43.65)
	b.NeighbourhoodCode = strPtr("001")
	mustLoad(t, db, "mci", a, b)
	mustLoad(t, db, "shootings", incident("SH-1", "2020-01-01T00:00:00Z", -79.38, 43.65))

	if err := db.RefreshAggregates(ctx); err != nil {
		t.Fatalf("RefreshAggregates() error = %v", err)
	}
	// A second refresh replaces rather than appends.
	if err := db.RefreshAggregates(ctx); err != nil {
		t.Fatalf("RefreshAggregates() error = %v", err)
	}

	var daily int64
	if err := db.Conn().QueryRowContext(ctx, `SELECT SUM(count) FROM agg_daily_counts`).Scan(&daily); err != nil {
		t.Fatalf("agg_daily_counts query error = %v", err)
	}
	if daily != 3 {
		t.Errorf("agg_daily_counts total = %d, want 3", daily)
	}

	var hood int64
	if err := db.Conn().QueryRowContext(ctx,
		`SELECT SUM(count) FROM agg_neighbourhood_counts WHERE neighbourhood_code = '001'`).Scan(&hood); err != nil {
		t.Fatalf("agg_neighbourhood_counts query error = %v", err)
	}
	if hood != 2 {
		t.Errorf("neighbourhood 001 count = %d, want 2", hood)
	}

	var last30 int64
	if err := db.Conn().QueryRowContext(ctx, `SELECT SUM(count) FROM agg_last_30d`).Scan(&last30); err != nil {
		t.Fatalf("agg_last_30d query error = %v", err)
	}
	if last30 != 2 {
		t.Errorf("last 30 days total = %d, want 2", last30)
	}
}
