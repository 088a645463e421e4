// Package logging provides structured logging for boardsync.
//
// It wraps Go's log/slog to produce JSON-formatted logs with persistent
// attributes (project, user, component) so that transport and coordinator
// activity for one collaboration session can be filtered after the fact.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger("/var/log/boardsync", "INFO")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	tlog := logger.WithComponent("transport").WithUser("u1")
//	tlog.Info("connected", "url", u)
//
// Components accept a *Logger and fall back to [NopLogger] when none is given.
// The level can be changed at runtime with [Logger.SetLevel], which the CLI
// uses when the config file is reloaded.
package logging
