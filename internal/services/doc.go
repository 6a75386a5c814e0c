// Package services holds the application services behind the HTTP API.
//
// ViewService reads the persisted tables, caching decoded Parquet files
// keyed by path and modification time, and applies the two-step ticker
// filter. RunService owns the single pipeline run slot shared by the API
// and the scheduler. HealthService answers liveness and readiness probes.
package services
