package dp83826

import (
	"log/slog"

	"github.com/soypat/ethphy/internal"
	"github.com/soypat/ethphy/nic"
)

func (d *Driver) logger(iface *nic.Interface) *slog.Logger {
	if d.log != nil {
		return d.log
	}
	return iface.Logger()
}

func (d *Driver) logattrs(iface *nic.Interface, lvl slog.Level, msg string, attrs ...slog.Attr) {
	internal.LogAttrs(d.logger(iface), lvl, msg, attrs...)
}

func (d *Driver) debug(iface *nic.Interface, msg string, attrs ...slog.Attr) {
	d.logattrs(iface, slog.LevelDebug, msg, attrs...)
}

func (d *Driver) info(iface *nic.Interface, msg string, attrs ...slog.Attr) {
	d.logattrs(iface, slog.LevelInfo, msg, attrs...)
}

func (d *Driver) logerr(iface *nic.Interface, msg string, attrs ...slog.Attr) {
	d.logattrs(iface, slog.LevelError, msg, attrs...)
}

func (d *Driver) trace(iface *nic.Interface, msg string, attrs ...slog.Attr) {
	d.logattrs(iface, internal.LevelTrace, msg, attrs...)
}
