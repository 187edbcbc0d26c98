package dp83826

import (
	"log/slog"

	"github.com/soypat/ethphy/internal"
	"github.com/soypat/ethphy/nic"
	"github.com/soypat/ethphy/phy"
)

// DumpRegisters reads registers 0 through 31 in order and logs each at debug level.
// It never fails: a failed read is logged along with its error and the dump continues.
// The registers are read even when debug logging is disabled. Note reading
// MISR1/MISR2 acknowledges any latched interrupt.
func (d *Driver) DumpRegisters(iface *nic.Interface) {
	dev, err := iface.PHYDevice()
	if err != nil {
		d.logerr(iface, "dp83826:dump", internal.SlogErr(err))
		return
	}
	enabled := internal.LogEnabled(d.logger(iface), slog.LevelDebug)
	for i := uint16(0); i < phy.NumRegisters; i++ {
		v, err := dev.ReadReg(i)
		if !enabled {
			continue
		} else if err != nil {
			d.debug(iface, "dp83826:reg", slog.Uint64("reg", uint64(i)), internal.SlogHex16("val", v), internal.SlogErr(err))
			continue
		}
		d.debug(iface, "dp83826:reg", slog.Uint64("reg", uint64(i)), internal.SlogHex16("val", v))
	}
}

// ReadRegisters reads registers 0 through 31 into dst. Unlike DumpRegisters it
// stops at the first bus error.
func ReadRegisters(iface *nic.Interface, dst *[phy.NumRegisters]uint16) error {
	dev, err := iface.PHYDevice()
	if err != nil {
		return err
	}
	for i := range dst {
		dst[i], err = dev.ReadReg(uint16(i))
		if err != nil {
			return err
		}
	}
	return nil
}
