// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package api

import (
	"time"

	"github.com/tomtom215/safetyview/internal/models"
	"github.com/tomtom215/safetyview/internal/validation"
)

// Run history page bounds.
const (
	defaultRunsLimit = 20
	maxRunsLimit     = 100
)

// filterParams are the attribute and spatial filters shared by incident and
// analytics endpoints.
type filterParams struct {
	BBox     string `query:"bbox" validate:"omitempty,bbox"`
	Dataset  string `query:"dataset" validate:"dataset"`
	Category string `query:"category" validate:"max=128"`
	Offence  string `query:"offence" validate:"max=128"`
	Hood     string `query:"hood" validate:"max=64"`
}

// readFilterParams accepts mci_category as an alias of category.
func readFilterParams(p *queryParams) filterParams {
	return filterParams{
		BBox:     p.str("bbox"),
		Dataset:  p.str("dataset"),
		Category: p.str("category", "mci_category"),
		Offence:  p.str("offence"),
		Hood:     p.str("hood"),
	}
}

func (f filterParams) toFilter() (models.IncidentFilter, error) {
	out := models.IncidentFilter{
		Dataset:           f.Dataset,
		Category:          f.Category,
		Offence:           f.Offence,
		NeighbourhoodCode: f.Hood,
	}
	if f.BBox != "" {
		bbox, err := models.ParseBBox(f.BBox)
		if err != nil {
			return out, err
		}
		out.BBox = bbox
	}
	return out, nil
}

// IncidentsRequest is GET /incidents.
type IncidentsRequest struct {
	filterParams
	DateFrom string `query:"date_from" validate:"omitempty,apidate"`
	DateTo   string `query:"date_to" validate:"omitempty,apidate"`
	Limit    int    `query:"limit" validate:"min=1,max=5000"`
	Offset   int    `query:"offset" validate:"min=0"`
}

func parseIncidentsRequest(p *queryParams) IncidentsRequest {
	return IncidentsRequest{
		filterParams: readFilterParams(p),
		DateFrom:     p.str("date_from"),
		DateTo:       p.str("date_to"),
		Limit:        p.int("limit", models.DefaultIncidentLimit),
		Offset:       p.int("offset", 0),
	}
}

func (req IncidentsRequest) toQuery() (models.IncidentQuery, error) {
	filter, err := req.toFilter()
	if err != nil {
		return models.IncidentQuery{}, err
	}
	q := models.IncidentQuery{IncidentFilter: filter, Limit: req.Limit, Offset: req.Offset}
	if q.From, err = parseDateField("date_from", req.DateFrom); err != nil {
		return q, err
	}
	if q.To, err = parseDateField("date_to", req.DateTo); err != nil {
		return q, err
	}
	return q, q.Normalize()
}

// NeighbourhoodsRequest is GET /neighbourhoods.
type NeighbourhoodsRequest struct {
	BBox  string `query:"bbox" validate:"omitempty,bbox"`
	Code  string `query:"code" validate:"max=64"`
	Limit int    `query:"limit" validate:"min=1,max=2000"`
}

func parseNeighbourhoodsRequest(p *queryParams) NeighbourhoodsRequest {
	return NeighbourhoodsRequest{
		BBox:  p.str("bbox"),
		Code:  p.str("code"),
		Limit: p.int("limit", models.DefaultNeighbourhoodLimit),
	}
}

func (req NeighbourhoodsRequest) toQuery() (models.NeighbourhoodQuery, error) {
	q := models.NeighbourhoodQuery{Code: req.Code, Limit: req.Limit}
	if req.BBox != "" {
		bbox, err := models.ParseBBox(req.BBox)
		if err != nil {
			return q, err
		}
		q.BBox = bbox
	}
	return q, q.Normalize()
}

// AnalyticsRequest is GET /analytics.
type AnalyticsRequest struct {
	filterParams
	DateFrom string `query:"date_from" validate:"required,apidate"`
	DateTo   string `query:"date_to" validate:"required,apidate"`
	Interval string `query:"interval" validate:"omitempty,oneof=day week month"`
}

func parseAnalyticsRequest(p *queryParams) AnalyticsRequest {
	return AnalyticsRequest{
		filterParams: readFilterParams(p),
		DateFrom:     p.str("date_from"),
		DateTo:       p.str("date_to"),
		Interval:     p.str("interval"),
	}
}

func (req AnalyticsRequest) toFilter() (models.AnalyticsFilter, models.Interval, error) {
	interval, err := models.ParseInterval(req.Interval)
	if err != nil {
		return models.AnalyticsFilter{}, "", err
	}
	f, err := analyticsFilter(req.filterParams, req.DateFrom, req.DateTo, "date_from", "date_to")
	return f, interval, err
}

// CompareWindowsRequest is GET /analytics/compare.
type CompareWindowsRequest struct {
	filterParams
	ADateFrom string `query:"a_date_from" validate:"required,apidate"`
	ADateTo   string `query:"a_date_to" validate:"required,apidate"`
	BDateFrom string `query:"b_date_from" validate:"required,apidate"`
	BDateTo   string `query:"b_date_to" validate:"required,apidate"`
	Interval  string `query:"interval" validate:"omitempty,oneof=day week month"`
}

func parseCompareWindowsRequest(p *queryParams) CompareWindowsRequest {
	return CompareWindowsRequest{
		filterParams: readFilterParams(p),
		ADateFrom:    p.str("a_date_from"),
		ADateTo:      p.str("a_date_to"),
		BDateFrom:    p.str("b_date_from"),
		BDateTo:      p.str("b_date_to"),
		Interval:     p.str("interval"),
	}
}

func (req CompareWindowsRequest) toFilters() (a, b models.AnalyticsFilter, interval models.Interval, err error) {
	if interval, err = models.ParseInterval(req.Interval); err != nil {
		return a, b, "", err
	}
	if a, err = analyticsFilter(req.filterParams, req.ADateFrom, req.ADateTo, "a_date_from", "a_date_to"); err != nil {
		return a, b, "", err
	}
	b, err = analyticsFilter(req.filterParams, req.BDateFrom, req.BDateTo, "b_date_from", "b_date_to")
	return a, b, interval, err
}

// CompareNeighbourhoodsRequest is GET /neighbourhoods/compare.
type CompareNeighbourhoodsRequest struct {
	A        string `query:"a" validate:"required,max=64"`
	B        string `query:"b" validate:"required,max=64"`
	Dataset  string `query:"dataset" validate:"dataset"`
	Category string `query:"category" validate:"max=128"`
	Offence  string `query:"offence" validate:"max=128"`
	DateFrom string `query:"date_from" validate:"required,apidate"`
	DateTo   string `query:"date_to" validate:"required,apidate"`
	Interval string `query:"interval" validate:"omitempty,oneof=day week month"`
}

func parseCompareNeighbourhoodsRequest(p *queryParams) CompareNeighbourhoodsRequest {
	return CompareNeighbourhoodsRequest{
		A:        p.str("a"),
		B:        p.str("b"),
		Dataset:  p.str("dataset"),
		Category: p.str("category", "mci_category"),
		Offence:  p.str("offence"),
		DateFrom: p.str("date_from"),
		DateTo:   p.str("date_to"),
		Interval: p.str("interval"),
	}
}

func (req CompareNeighbourhoodsRequest) toFilter() (models.AnalyticsFilter, models.Interval, error) {
	interval, err := models.ParseInterval(req.Interval)
	if err != nil {
		return models.AnalyticsFilter{}, "", err
	}
	fp := filterParams{Dataset: req.Dataset, Category: req.Category, Offence: req.Offence}
	f, err := analyticsFilter(fp, req.DateFrom, req.DateTo, "date_from", "date_to")
	return f, interval, err
}

// RunsRequest is GET /ingest/runs.
type RunsRequest struct {
	Limit int `query:"limit" validate:"min=1,max=100"`
}

func parseRunsRequest(p *queryParams) RunsRequest {
	return RunsRequest{Limit: p.int("limit", defaultRunsLimit)}
}

func analyticsFilter(fp filterParams, rawFrom, rawTo, fromField, toField string) (models.AnalyticsFilter, error) {
	base, err := fp.toFilter()
	if err != nil {
		return models.AnalyticsFilter{}, err
	}
	from, err := parseDateField(fromField, rawFrom)
	if err != nil {
		return models.AnalyticsFilter{}, err
	}
	to, err := parseDateField(toField, rawTo)
	if err != nil {
		return models.AnalyticsFilter{}, err
	}
	if from == nil || to == nil {
		return models.AnalyticsFilter{}, &models.ValidationError{Field: fromField, Message: fromField + " and " + toField + " are required"}
	}
	f := models.AnalyticsFilter{IncidentFilter: base, From: *from, To: *to}
	if err := f.Validate(); err != nil {
		return f, err
	}
	return f, nil
}

func parseDateField(field, raw string) (*time.Time, error) {
	t, err := validation.ParseDate(raw)
	if err != nil {
		return nil, &models.ValidationError{Field: field, Message: err.Error()}
	}
	return t, nil
}
