package phy

// LinkMode is a link speed and duplex combination as resolved by
// auto-negotiation or forced through BMCR.
type LinkMode uint8

const (
	LinkDown   LinkMode = iota // down
	Link10HDX                  // 10M-H
	Link10FDX                  // 10M-F
	Link100HDX                 // 100M-H
	Link100FDX                 // 100M-F
	Link100T4                  // 100M-T4
)

var linkModeNames = [...]string{
	LinkDown:   "down",
	Link10HDX:  "10M-H",
	Link10FDX:  "10M-F",
	Link100HDX: "100M-H",
	Link100FDX: "100M-F",
	Link100T4:  "100M-T4",
}

// ParseLinkMode parses the form returned by String, i.e: "100M-F".
// "down" is not accepted.
func ParseLinkMode(s string) (LinkMode, error) {
	for lm := Link10HDX; lm <= Link100T4; lm++ {
		if linkModeNames[lm] == s {
			return lm, nil
		}
	}
	return LinkDown, ErrUnsupported
}

func (lm LinkMode) String() string {
	if int(lm) < len(linkModeNames) {
		return linkModeNames[lm]
	}
	return "LinkMode(?)"
}

// ANAR returns the advertisement bit of lm, zero for LinkDown.
func (lm LinkMode) ANAR() ANAR {
	switch lm {
	case Link10HDX:
		return ANAR10Half
	case Link10FDX:
		return ANAR10Full
	case Link100HDX:
		return ANAR100Half
	case Link100FDX:
		return ANAR100Full
	case Link100T4:
		return ANAR100T4
	}
	return 0
}

// SpeedMbps returns 10, 100 or 0 for LinkDown.
func (lm LinkMode) SpeedMbps() int {
	switch lm {
	case Link10HDX, Link10FDX:
		return 10
	case Link100HDX, Link100FDX, Link100T4:
		return 100
	}
	return 0
}

// IsFullDuplex reports whether lm is a full duplex mode. 100BASE-T4 is half duplex.
func (lm LinkMode) IsFullDuplex() bool {
	return lm == Link10FDX || lm == Link100FDX
}
