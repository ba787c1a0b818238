// Package logging routes test log records to per-scenario files.
//
// # Overview
//
// A Router owns three things:
//   - a scenario resolver that maps a record to the test group it belongs to
//   - a dedup filter that drops identical (level, message) pairs inside a
//     time window
//   - a sink registry holding a general and an error-only rotating file per
//     scenario, plus the Global pair
//
// Every record that passes the level gate and the dedup filter is written
// to the console, to its scenario's sinks, and to the Global sinks.
//
// # Usage
//
//	cfg, err := logging.LoadConfig("scenariolog.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	router, err := logging.NewRouter(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer router.Close()
//
// Bind a scenario for the duration of a test:
//
//	ctx, end := router.BeginTest(ctx, "tests/checkout/test_cart.py::test_add")
//	defer end(logging.ResultPassed)
//	router.Emit(ctx, logging.InfoLevel, "cart loaded", logging.Fields{"items": 3})
//
// Records go to logs/checkout/checkout.log, logs/global.log and the
// console. Code that expects a *zap.Logger can take router.Logger(ctx).
//
// # Scenario resolution
//
// In order: the scenario bound to the context, the "scenario" field, the
// "test_path" or "nodeid" field resolved against the test tree marker,
// then Global.
//
// # Levels
//
// DEBUG, INFO, WARNING, ERROR and CRITICAL. ERROR and CRITICAL records
// always reach the error sinks, whatever the configured level. Those that
// carry an error (EmitError) are followed by a stack trace in the file
// format; all other records are a single line.
//
// # Configuration Precedence
//
//  1. Defaults (NewDefaultConfig)
//  2. File (scenariolog.yaml)
//  3. Environment variables (SCENARIOLOG_*, LOG_LEVEL)
//
// # Failure handling
//
// Emit never returns an error or panics. An invalid level becomes INFO, an
// unwritable log root leaves console-only output, and a sink that fails to
// write is disabled for the rest of the process. Each case prints one
// "scenariolog:" diagnostic to the console.
//
// # Testing
//
//	tr := logging.NewTestRouter()
//	tr.Emit(ctx, logging.InfoLevel, "hello", nil)
//	tr.AssertLogged(t, logging.InfoLevel, "hello")
//	tr.AssertScenario(t, "hello", "Global")
package logging
