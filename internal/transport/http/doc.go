// Package http implements the HTTP handlers of the server: health and
// version, the read-only views API, run control and the websocket stream.
//
// Handlers are thin. They parse and validate the request, call a service
// and render the result with chi/render; every error goes through
// errors.ErrorHandler so clients always receive RFC 7807 problem details.
//
//	GET    /api/health          liveness
//	GET    /api/health/ready    readiness
//	GET    /api/version         build and format versions
//	GET    /api/views           every table with schema, rows, mtime
//	GET    /api/views/{name}    table rows, ?ticker= filtered
//	GET    /api/tickers         distinct tickers of the clean table
//	POST   /api/runs            start a run (409 while one is active)
//	GET    /api/runs/latest     latest run manifest
//	GET    /api/runs/current    live snapshot of the latest run
//	DELETE /api/runs/current    cancel the active run
//	GET    /ws                  run snapshots as they change
package http
