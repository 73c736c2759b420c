// Package http serves a read-only JSON view of a time-matrix store.
//
// Routes:
//
//	GET /healthz                          liveness and store reachability
//	GET /api/v1/version                   build information
//	GET /api/v1/sheets                    sheet names
//	GET /api/v1/sheets/{name}             sheet values (?last=N, ?symbol=KEY)
//	GET /api/v1/sheets/{name}/header      date labels and symbol keys
//	GET /api/v1/sheets/{name}/provenance  formula version per date column
//	GET /api/v1/symbols                   symbol catalog
//	GET /api/v1/runs                      recent engine runs (?limit=N)
//	GET /metrics                          Prometheus exposition
//
// Errors are RFC 7807 problem documents rendered by the errors package.
// No handler writes to the store.
package http
