// Package logging configures the structured loggers used across expectd.
//
// It wraps log/slog. Components accept a *slog.Logger in their constructor
// or through an option; when none is given they fall back to Nop().
//
//	logger := logging.New(logging.Config{
//	    Level:  logging.LevelDebug,
//	    Format: logging.FormatJSON,
//	})
//	logger.Info("expectation registered", "request", fp.String())
//
// The CLI builds its config with FromEnv and then applies flag overrides.
package logging
