// Package app wires configuration, logging, telemetry, the ledger and the
// engine into one Application shared by every matrixctl command, and runs
// the read-only HTTP API with graceful shutdown.
package app
