package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb/randr"
)

// ActiveCRTCs returns the RandR CRTC of every CRTC driving an output, in
// screen resource order.
func (c *Connection) ActiveCRTCs() ([]uint32, error) {
	xc := c.XUtil.Conn()
	if err := randr.Init(xc); err != nil {
		return nil, fmt.Errorf("randr init failed: %w", err)
	}
	res, err := randr.GetScreenResourcesCurrent(xc, c.Root).Reply()
	if err != nil {
		return nil, fmt.Errorf("screen resources: %w", err)
	}

	crtcs := make([]uint32, 0, len(res.Crtcs))
	for _, crtc := range res.Crtcs {
		info, err := randr.GetCrtcInfo(xc, crtc, res.ConfigTimestamp).Reply()
		if err != nil {
			return nil, fmt.Errorf("crtc %d: %w", crtc, err)
		}
		if len(info.Outputs) == 0 || info.Width == 0 {
			continue
		}
		crtcs = append(crtcs, uint32(crtc))
	}
	return crtcs, nil
}
