package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/google/gousb"

	"aes1660-go/internal/protocol"
)

// USBConfig selects the device and endpoints.
type USBConfig struct {
	VendorID  uint16
	ProductID uint16
	// Interface number to claim (0 on the AES1660)
	Interface int
	// InEndpoint and OutEndpoint are endpoint numbers without the direction bit
	InEndpoint  int
	OutEndpoint int
	// Timeout applies to every transfer
	Timeout time.Duration
}

// DefaultUSBConfig returns the AES1660 settings: EP 1 IN, EP 2 OUT, 4 s timeout.
func DefaultUSBConfig() USBConfig {
	return USBConfig{
		VendorID:    protocol.VendorID,
		ProductID:   protocol.ProductID,
		Interface:   0,
		InEndpoint:  1,
		OutEndpoint: 2,
		Timeout:     protocol.DefaultTimeout,
	}
}

// USBPort talks to the sensor over its bulk endpoints.
type USBPort struct {
	ctx     *gousb.Context
	dev     *gousb.Device
	intf    *gousb.Interface
	cfg     *gousb.Config
	in      *gousb.InEndpoint
	out     *gousb.OutEndpoint
	timeout time.Duration
}

// OpenUSB opens the first device matching the configured VID/PID and claims
// its interface.
func OpenUSB(cfg USBConfig) (*USBPort, error) {
	ctx := gousb.NewContext()

	dev, err := ctx.OpenDeviceWithVIDPID(gousb.ID(cfg.VendorID), gousb.ID(cfg.ProductID))
	if err != nil {
		_ = ctx.Close()
		return nil, fmt.Errorf("open device %04x:%04x: %w", cfg.VendorID, cfg.ProductID, err)
	}
	if dev == nil {
		_ = ctx.Close()
		return nil, fmt.Errorf("can't open device %04x:%04x: not found", cfg.VendorID, cfg.ProductID)
	}
	if err := dev.SetAutoDetach(true); err != nil {
		_ = dev.Close()
		_ = ctx.Close()
		return nil, fmt.Errorf("set auto detach: %w", err)
	}

	usbCfg, err := dev.Config(1)
	if err != nil {
		_ = dev.Close()
		_ = ctx.Close()
		return nil, fmt.Errorf("select configuration: %w", err)
	}
	intf, err := usbCfg.Interface(cfg.Interface, 0)
	if err != nil {
		_ = usbCfg.Close()
		_ = dev.Close()
		_ = ctx.Close()
		return nil, fmt.Errorf("claim interface %d: %w", cfg.Interface, err)
	}

	port := &USBPort{
		ctx:     ctx,
		dev:     dev,
		intf:    intf,
		cfg:     usbCfg,
		timeout: Timeout(cfg.Timeout, protocol.DefaultTimeout),
	}
	if port.in, err = intf.InEndpoint(cfg.InEndpoint); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("in endpoint %d: %w", cfg.InEndpoint, err)
	}
	if port.out, err = intf.OutEndpoint(cfg.OutEndpoint); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("out endpoint %d: %w", cfg.OutEndpoint, err)
	}
	return port, nil
}

// Read performs one bulk IN transfer.
func (p *USBPort) Read(b []byte) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	return p.in.ReadContext(ctx, b)
}

// Write performs one bulk OUT transfer.
func (p *USBPort) Write(b []byte) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	return p.out.WriteContext(ctx, b)
}

func (p *USBPort) Close() error {
	if p.intf != nil {
		p.intf.Close()
		p.intf = nil
	}
	var firstErr error
	if p.cfg != nil {
		firstErr = p.cfg.Close()
		p.cfg = nil
	}
	if p.dev != nil {
		if err := p.dev.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		p.dev = nil
	}
	if p.ctx != nil {
		if err := p.ctx.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		p.ctx = nil
	}
	return firstErr
}
