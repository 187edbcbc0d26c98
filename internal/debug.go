// Package internal holds logging helpers shared by the driver packages.
package internal

import (
	"context"
	"log/slog"
)

// LevelTrace is below debug and used for per transaction logging.
const LevelTrace slog.Level = slog.LevelDebug - 2

// LogEnabled reports whether l would emit a record at lvl. A nil logger is disabled.
func LogEnabled(l *slog.Logger, lvl slog.Level) bool {
	return l != nil && l.Handler().Enabled(context.Background(), lvl)
}

// LogAttrs logs to l if it is non-nil. Package loggers go through here so a
// nil *slog.Logger means silence.
func LogAttrs(l *slog.Logger, level slog.Level, msg string, attrs ...slog.Attr) {
	if l != nil {
		l.LogAttrs(context.Background(), level, msg, attrs...)
	}
}

// SlogHex16 returns a register value attribute formatted as 0x%04X.
func SlogHex16(key string, v uint16) slog.Attr {
	const hex = "0123456789ABCDEF"
	buf := [6]byte{'0', 'x'}
	for i := 5; i >= 2; i-- {
		buf[i] = hex[v&0xf]
		v >>= 4
	}
	return slog.String(key, string(buf[:]))
}

// SlogErr returns an "err" attribute. A nil error is logged as the empty string.
func SlogErr(err error) slog.Attr {
	if err == nil {
		return slog.String("err", "")
	}
	return slog.String("err", err.Error())
}

func SlogUint8(key string, v uint8) slog.Attr {
	return slog.Uint64(key, uint64(v))
}
