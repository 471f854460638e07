package printer

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/google/gousb"
	"go.uber.org/zap"
)

const ifaceClassPrinter = gousb.ClassPrinter

type usbConn struct {
	ctx  *gousb.Context
	dev  *gousb.Device
	cfg  *gousb.Config
	intf *gousb.Interface
	out  *gousb.OutEndpoint
}

// newUSBContext turns the panic gousb raises when libusb cannot start
// (no usbfs, e.g. inside a container) into an error.
func newUSBContext() (ctx *gousb.Context, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("libusb init: %v", r)
		}
	}()
	return gousb.NewContext(), nil
}

func openUSB(tc TransportConfig, logger *zap.Logger) (Transport, error) {
	ctx, err := newUSBContext()
	if err != nil {
		return nil, err
	}
	dev, err := findUSBPrinter(ctx, tc.VendorID, tc.ProductID)
	if err != nil {
		ctx.Close()
		return nil, err
	}

	conn := &usbConn{ctx: ctx, dev: dev}
	if err := conn.claim(); err != nil {
		conn.Close()
		return nil, err
	}

	logger.Info("usb printer opened",
		zap.Stringer("vendor_id", dev.Desc.Vendor),
		zap.Stringer("product_id", dev.Desc.Product),
		zap.Int("interface", conn.intf.Setting.Number),
	)
	return NewRawTransport(KindUSB, conn, logger), nil
}

// findUSBPrinter opens the device with the given IDs, or the first device
// exposing a printer-class interface when both IDs are zero.
func findUSBPrinter(ctx *gousb.Context, vid, pid uint16) (*gousb.Device, error) {
	if vid != 0 || pid != 0 {
		dev, err := ctx.OpenDeviceWithVIDPID(gousb.ID(vid), gousb.ID(pid))
		if err != nil {
			return nil, fmt.Errorf("open %04x:%04x: %w", vid, pid, err)
		}
		if dev == nil {
			return nil, fmt.Errorf("usb device %04x:%04x not found", vid, pid)
		}
		return dev, nil
	}

	var found *gousb.Device
	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return isPrinterDesc(desc)
	})
	for _, d := range devs {
		if found == nil {
			found = d
			continue
		}
		d.Close()
	}
	if found != nil {
		return found, nil
	}
	if err != nil {
		return nil, fmt.Errorf("enumerate usb devices: %w", err)
	}
	return nil, errors.New("no usb printer found")
}

func isPrinterDesc(desc *gousb.DeviceDesc) bool {
	for _, cfg := range desc.Configs {
		for _, iface := range cfg.Interfaces {
			for _, alt := range iface.AltSettings {
				if alt.Class == ifaceClassPrinter {
					return true
				}
			}
		}
	}
	return false
}

// claim selects the printer interface of the active config and its first
// OUT endpoint.
func (u *usbConn) claim() error {
	if runtime.GOOS == "linux" {
		u.dev.SetAutoDetach(true)
	}

	cfgNum, err := u.dev.ActiveConfigNum()
	if err != nil {
		return fmt.Errorf("failed to get active config: %w", err)
	}
	u.cfg, err = u.dev.Config(cfgNum)
	if err != nil {
		return fmt.Errorf("failed to get config: %w", err)
	}

	ifaceNum, alt := 0, 0
search:
	for _, iface := range u.cfg.Desc.Interfaces {
		for _, s := range iface.AltSettings {
			if s.Class == ifaceClassPrinter {
				ifaceNum, alt = iface.Number, s.Alternate
				break search
			}
		}
	}

	u.intf, err = u.cfg.Interface(ifaceNum, alt)
	if err != nil {
		return fmt.Errorf("failed to claim interface %d: %w", ifaceNum, err)
	}

	for _, ep := range u.intf.Setting.Endpoints {
		if ep.Direction == gousb.EndpointDirectionOut {
			u.out, err = u.intf.OutEndpoint(ep.Number)
			if err != nil {
				return fmt.Errorf("failed to open out endpoint %d: %w", ep.Number, err)
			}
			return nil
		}
	}
	return errors.New("cannot find output endpoint from printer")
}

func (u *usbConn) Write(p []byte) (int, error) {
	return u.out.Write(p)
}

func (u *usbConn) Close() error {
	if u.intf != nil {
		u.intf.Close()
	}
	if u.cfg != nil {
		u.cfg.Close()
	}
	var err error
	if u.dev != nil {
		err = u.dev.Close()
	}
	if u.ctx != nil {
		if cerr := u.ctx.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
