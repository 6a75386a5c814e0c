// Package app wires the server: configuration, logging and telemetry, the
// pipeline manager, the run, view and health services, the scheduler, the
// websocket hub and the HTTP router, and manages their lifecycle.
//
// # Initialization Flow
//
//	1. Load configuration from defaults, file and environment
//	2. Initialize logging and OpenTelemetry
//	3. Resolve and create the output layout
//	4. Build the pipeline manager and services
//	5. Set up middleware and routes
//	6. Start hub, scheduler and HTTP server
//	7. On SIGINT/SIGTERM, drain the server and cancel the active run
//
// NewManager is also used by the batch command so both entry points run the
// same pipeline.
package app
