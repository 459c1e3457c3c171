/*
Package log provides structured logging for the volume driver daemon using
zerolog.

# Usage

Initializing the logger:

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

Component loggers:

	schedulerLog := log.WithComponent("scheduler")
	schedulerLog.Info().Msg("tick")
	schedulerLog.Error().Err(err).Str("action", "purge:2h:2h").Msg("job failed")

Request-scoped loggers carrying a correlation ID (the plugin server's
handlers do not attach one):

	reqLog := log.WithRequestID(id)
	reqLog.Info().Str("endpoint", "/VolumeDriver.Snapshot").Msg("handled")

Do:
  - use Info level in production, Debug only for troubleshooting
  - create a component logger once per package (pkg/driver, pkg/scheduler, ...)
    and pass it down, rather than reaching for the global Logger
  - log external-tool failures with both stdout and stderr attached as fields

Don't:
  - log volume contents or snapshot payloads
  - concatenate user-supplied names into the message string; pass them as
    .Str() fields instead
*/
package log
