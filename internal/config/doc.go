// Package config provides centralized configuration management for stockpipe.
// It loads configuration from multiple sources, validates it, and resolves the
// output layout of a pipeline run.
//
// # Configuration Sources
//
// Sources are applied in order, later ones winning:
//
//	1. Default values
//	2. A YAML file (-config flag, or stockpipe.yaml, config.yaml, configs/config.yaml)
//	3. Environment variables
//
// # Environment Variables
//
// All environment variables use the STOCKPIPE_ prefix followed by the section
// and field name:
//
//	STOCKPIPE_PIPELINE_SOURCE=data/raw/market.csv
//	STOCKPIPE_PIPELINE_OUTPUT_DIR=data/output
//	STOCKPIPE_PIPELINE_WEEK_START=sunday
//	STOCKPIPE_PIPELINE_MIRRORS=csv,sqlite
//	STOCKPIPE_SERVER_PORT=8080
//	STOCKPIPE_SCHEDULE_CRON="0 0 18 * * 1-5"
//
// # Output Layout
//
//	<output_dir>/
//	  cleaned.parquet
//	  agg_daily.parquet ... agg_notes.parquet
//	  manifest.json
//	  csv/<table>.csv    (csv mirror)
//	  views.db           (sqlite mirror)
//	  views.xlsx         (xlsx mirror)
package config
