// Package shared holds code used across stockpipe's packages that belongs
// to no single layer.
//
// The testutil subpackage provides the market CSV fixtures and a buffered
// slog handler so tests can assert on structured log output:
//
//	logger, handler := testutil.NewTestLogger(t)
//	source := testutil.WriteMarketCSV(t)
//	...
//	testutil.AssertLogContains(t, handler, slog.LevelInfo, "run finished")
package shared
