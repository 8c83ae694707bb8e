// Package logging builds the service's zap loggers.
//
// The root logger writes JSON in production and colored console output in
// development. ForInstance derives the per-instance child handed to each
// surface; an instance created with debug set logs at Debug even when the
// root is at Info.
//
//	logger := logging.NewDefault()
//	instLog := logging.ForInstance(logger.Logger, id, "web", cfg.Debug)
//	instLog.Debug("Navigation failed", zap.Error(err))
package logging
