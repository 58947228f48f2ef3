// Package dlog bridges third-party logger interfaces into the
// project's zerolog logger, the same way the teacher bridges badger's
// logger interface. Here it bridges github.com/anacrolix/log, the
// BitTorrent engine's own logging package.
package dlog

import (
	tlog "github.com/anacrolix/log"
	"github.com/rs/zerolog"
)

// Anacrolix adapts a zerolog.Logger into an anacrolix/log handler so the
// engine's internal diagnostics flow through the same structured
// sink as the rest of the process.
type Anacrolix struct {
	L zerolog.Logger
}

func (a *Anacrolix) Handle(r tlog.Record) {
	var ev *zerolog.Event
	switch {
	case r.Level >= tlog.Critical:
		ev = a.L.Error()
	case r.Level >= tlog.Warning:
		ev = a.L.Warn()
	case r.Level >= tlog.Info:
		ev = a.L.Info()
	default:
		ev = a.L.Debug()
	}
	ev.Str("source", "anacrolix").Msg(r.Msg.String())
}
