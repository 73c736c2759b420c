// Package config loads the explicit configuration object every engine
// entry point receives.
//
// # Sources
//
// Values are layered in increasing precedence:
//
//	1. Default()
//	2. a YAML file (matrix.yaml, config.yaml or configs/matrix.yaml, or the --config flag)
//	3. a .env file in the working directory
//	4. MATRIX_* environment variables
//
// Environment names follow the YAML structure:
//
//	MATRIX_STORE_PATH=data/stock_value.xlsx
//	MATRIX_INDICATORS_Z_WINDOWS=20,60,120
//	MATRIX_LEDGER_ENABLED=false
//	MATRIX_LOGGING_LEVEL=debug
//
// Relative paths in a config file are resolved against the file's directory.
//
// # Validation
//
// Load validates the result with go-playground/validator and reports every
// failing field, by YAML name, in a single CONFIG error.
package config
