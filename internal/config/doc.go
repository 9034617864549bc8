// SafetyView - Public Safety Incident Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/safetyview

/*
Package config loads SafetyView configuration for both the API server and the
ETL job.

# Sources

Configuration is layered with koanf, lowest priority first:

  - Built-in defaults (defaultConfig)
  - A YAML file from CONFIG_PATH, ETL_CONFIG, ./config.yaml or /etc/safetyview/config.yaml
  - Environment variables, including any set by a .env file (DOTENV_PATH)

Only environment variables listed in envMappings are read. List values such
as CORS_ORIGINS are comma-separated; SOURCE_DATASETS uses name=url pairs:

	SOURCE_DATASETS=robbery=https://host/arcgis/rest/services/Robbery/FeatureServer/0/query

# Example YAML

	database:
	  path: /data/safetyview.duckdb
	sources:
	  datasets:
	    robbery: https://host/.../Robbery_Open_Data/FeatureServer/0/query
	    theft_over: https://host/.../Theft_Over_Open_Data/FeatureServer/0/query
	  neighbourhoods:
	    url: https://host/.../Neighbourhoods/FeatureServer/0/query
	etl:
	  window_days: 7
	  overlap_margin: 72h
	  workers: 4

Validate runs on every load; ValidateForIngestion additionally requires at
least one upstream source and is called by the ETL entry points.
*/
package config
