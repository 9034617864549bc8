// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

package connector

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/safetyview/internal/config"
	"github.com/tomtom215/safetyview/internal/logging"
	"github.com/tomtom215/safetyview/internal/models"
)

// queryResponse is the f=json feature query payload.
type queryResponse struct {
	Features []struct {
		Attributes map[string]json.RawMessage `json:"attributes"`
	} `json:"features"`
	ExceededTransferLimit bool `json:"exceededTransferLimit"`
}

// ArcGISIncidents pages through an ArcGIS feature layer ordered by OBJECTID.
type ArcGISIncidents struct {
	dataset  string
	client   *client
	fields   FieldMapping
	pageSize int
}

// whereClause renders the REPORT_DATE window filter. A nil window selects
// every record.
func (s *ArcGISIncidents) whereClause(window *models.Window) string {
	if window == nil {
		return "1=1"
	}
	return fmt.Sprintf("%s >= %d AND %s < %d",
		s.fields.ReportDate, window.From.UnixMilli(),
		s.fields.ReportDate, window.To.UnixMilli())
}

func (s *ArcGISIncidents) params(where string, offset int) url.Values {
	p := url.Values{}
	p.Set("where", where)
	p.Set("outFields", s.fields.OutFields())
	p.Set("orderByFields", "OBJECTID")
	p.Set("resultRecordCount", strconv.Itoa(s.pageSize))
	p.Set("resultOffset", strconv.Itoa(offset))
	p.Set("returnGeometry", "false")
	p.Set("f", "json")
	return p
}

// FetchIncidents implements Connector. A page whose valid rows were all
// delivered before means the service ignores resultOffset; the fetch ends
// there instead of looping on the same page.
func (s *ArcGISIncidents) FetchIncidents(ctx context.Context, window *models.Window, fn IncidentPageFunc) (FetchStats, error) {
	stats := newFetchStats()
	where := s.whereClause(window)
	log := logging.Ctx(ctx).With().Str("dataset", s.dataset).Logger()
	log.Debug().Str("where", where).Msg("Fetching incidents")
	seen := make(map[string]struct{})

	offset := 0
	for {
		body, rs, err := s.client.get(ctx, s.params(where, offset))
		stats.add(rs)
		if err != nil {
			return stats, &models.UpstreamFetchError{
				Dataset:        s.dataset,
				Offset:         offset,
				PagesDelivered: stats.Pages,
				Transient:      isTransient(err),
				Err:            err,
			}
		}

		var resp queryResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return stats, &models.UpstreamFetchError{
				Dataset:        s.dataset,
				Offset:         offset,
				PagesDelivered: stats.Pages,
				Err:            fmt.Errorf("failed to decode page: %w", err),
			}
		}
		if len(resp.Features) == 0 {
			return stats, nil
		}

		page := make([]models.Incident, 0, len(resp.Features))
		for i := range resp.Features {
			inc, reason := TransformIncident(s.dataset, s.fields, resp.Features[i].Attributes)
			if reason != "" {
				stats.Skipped.Add(reason)
				log.Warn().
					Str("reason", string(reason)).
					Int("offset", offset+i).
					Msg("RowSkipped")
				continue
			}
			page = append(page, inc)
		}

		fresh := 0
		for i := range page {
			if _, dup := seen[page[i].EventUniqueID]; !dup {
				seen[page[i].EventUniqueID] = struct{}{}
				fresh++
			}
		}
		if len(page) > 0 && fresh == 0 {
			log.Debug().Int("offset", offset).Msg("Incident service repeated a page, stopping")
			return stats, nil
		}

		stats.Received += int64(len(resp.Features))
		stats.Pages++
		if len(page) > 0 {
			if err := fn(page); err != nil {
				return stats, err
			}
			stats.Delivered += int64(len(page))
		}

		offset += len(resp.Features)
		if len(resp.Features) < s.pageSize && !resp.ExceededTransferLimit {
			return stats, nil
		}
	}
}

// geoJSONResponse is the f=geojson payload. ArcGIS reports the transfer
// limit under properties.
type geoJSONResponse struct {
	Features []struct {
		Properties map[string]json.RawMessage `json:"properties"`
		Geometry   *models.GeoJSONGeometry    `json:"geometry"`
	} `json:"features"`
	ExceededTransferLimit bool `json:"exceededTransferLimit"`
	Properties            struct {
		ExceededTransferLimit bool `json:"exceededTransferLimit"`
	} `json:"properties"`
}

func (r *geoJSONResponse) exceeded() bool {
	return r.ExceededTransferLimit || r.Properties.ExceededTransferLimit
}

// BoundaryDataset is the dataset label used for the boundary feed in logs,
// metrics and ingestion runs.
const BoundaryDataset = config.ReservedBoundaryDataset

// BoundaryFields names the polygon properties.
type BoundaryFields struct {
	AreaCode  string
	ShortCode string
	Name      string
}

// ArcGISBoundaries fetches neighbourhood polygons as GeoJSON in EPSG:4326.
type ArcGISBoundaries struct {
	client   *client
	fields   BoundaryFields
	pageSize int
}

func (s *ArcGISBoundaries) params(offset int) url.Values {
	p := url.Values{}
	p.Set("where", "1=1")
	p.Set("outFields", s.fields.AreaCode+","+s.fields.ShortCode+","+s.fields.Name)
	p.Set("returnGeometry", "true")
	p.Set("outSR", "4326")
	p.Set("resultRecordCount", strconv.Itoa(s.pageSize))
	p.Set("resultOffset", strconv.Itoa(offset))
	p.Set("f", "geojson")
	return p
}

// FetchNeighbourhoods implements BoundaryConnector. Services that ignore
// resultOffset return the same page forever; a page whose valid features
// are all already seen ends the fetch.
func (s *ArcGISBoundaries) FetchNeighbourhoods(ctx context.Context, fn BoundaryPageFunc) (FetchStats, error) {
	stats := newFetchStats()
	log := logging.Ctx(ctx).With().Str("dataset", BoundaryDataset).Logger()
	seen := make(map[string]struct{})

	offset := 0
	for {
		started := time.Now()
		body, rs, err := s.client.get(ctx, s.params(offset))
		stats.add(rs)
		if err != nil {
			return stats, &models.UpstreamFetchError{
				Dataset:        BoundaryDataset,
				Offset:         offset,
				PagesDelivered: stats.Pages,
				Transient:      isTransient(err),
				Err:            err,
			}
		}

		var resp geoJSONResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return stats, &models.UpstreamFetchError{
				Dataset:        BoundaryDataset,
				Offset:         offset,
				PagesDelivered: stats.Pages,
				Err:            fmt.Errorf("failed to decode page: %w", err),
			}
		}
		if len(resp.Features) == 0 {
			return stats, nil
		}

		page := make([]models.NeighbourhoodPolygon, 0, len(resp.Features))
		skipped := make(models.SkipCounts)
		dups := 0
		for i := range resp.Features {
			f := &resp.Features[i]
			poly, reason := TransformBoundary(s.fields, f.Properties, f.Geometry)
			if reason != "" {
				skipped.Add(reason)
				continue
			}
			if _, dup := seen[poly.AreaCode]; dup {
				dups++
				continue
			}
			seen[poly.AreaCode] = struct{}{}
			page = append(page, poly)
		}

		if len(page) == 0 && dups > 0 {
			log.Debug().Int("offset", offset).Msg("Boundary service repeated a page, stopping")
			return stats, nil
		}
		for reason, n := range skipped {
			log.Warn().Str("reason", string(reason)).Int("rows", n).Int("offset", offset).Msg("RowSkipped")
		}
		stats.Skipped.Merge(skipped)
		stats.Received += int64(len(resp.Features))
		stats.Pages++
		if len(page) > 0 {
			if err := fn(page); err != nil {
				return stats, err
			}
			stats.Delivered += int64(len(page))
		}
		log.Debug().Int("features", len(resp.Features)).Dur("elapsed", time.Since(started)).Msg("Boundary page fetched")

		offset += len(resp.Features)
		if len(resp.Features) < s.pageSize && !resp.exceeded() {
			return stats, nil
		}
	}
}
