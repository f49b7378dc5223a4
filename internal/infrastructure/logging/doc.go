// Package logging wraps uber/zap for the daemon and the CLI.
//
// The daemon logs JSON to stdout in production and colored console output
// in development. selectorctl logs to stderr at warn level (debug with
// --verbose) so its JSON reports on stdout stay parseable.
//
// Components receive named children:
//
//	logger := logging.FromSettings(cfg.Logging.Level, cfg.Logging.Development)
//	reg, _ := registry.New(registry.Options{Logger: logger.Component("registry")})
//	logger.Info("Configurations loaded", zap.Int("configurations", n))
package logging
