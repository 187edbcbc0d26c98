package nic

import (
	"log/slog"

	"github.com/soypat/ethphy/internal"
)

func (iface *Interface) logattrs(lvl slog.Level, msg string, attrs ...slog.Attr) {
	internal.LogAttrs(iface.log, lvl, msg, attrs...)
}

func (iface *Interface) debug(msg string, attrs ...slog.Attr) {
	iface.logattrs(slog.LevelDebug, msg, attrs...)
}

func (iface *Interface) info(msg string, attrs ...slog.Attr) {
	iface.logattrs(slog.LevelInfo, msg, attrs...)
}

func (iface *Interface) logerr(msg string, attrs ...slog.Attr) {
	iface.logattrs(slog.LevelError, msg, attrs...)
}

func (iface *Interface) trace(msg string, attrs ...slog.Attr) {
	iface.logattrs(internal.LevelTrace, msg, attrs...)
}
