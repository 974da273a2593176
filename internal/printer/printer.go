// Package printer renders sales as ESC/POS receipts and sends them to a
// thermal printer.
package printer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"
)

// ErrNotConfigured is returned by the no-op printer.
var ErrNotConfigured = errors.New("no receipt printer configured")

// Printer sends raw ESC/POS bytes to a device.
type Printer interface {
	Print(ctx context.Context, data []byte) error
}

// Config selects and locates the printer.
type Config struct {
	Type    string // usb, network or none
	USBPath string
	Address string
	Width   int
}

// New returns the printer described by cfg.
func New(cfg Config) (Printer, error) {
	switch cfg.Type {
	case "usb":
		if cfg.USBPath == "" {
			return nil, errors.New("printer: usb type needs a device path")
		}
		return &Device{Path: cfg.USBPath}, nil
	case "network":
		if cfg.Address == "" {
			return nil, errors.New("printer: network type needs an address")
		}
		return &Network{Address: cfg.Address, Timeout: 5 * time.Second}, nil
	case "none", "":
		return None{}, nil
	}
	return nil, fmt.Errorf("printer: unknown type %q", cfg.Type)
}

// Device writes to a character device such as /dev/usb/lp0, opened per job.
type Device struct {
	Path string
}

func (p *Device) Print(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.OpenFile(p.Path, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("printer: open %s: %w", p.Path, err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("printer: write %s: %w", p.Path, err)
	}
	return nil
}

// Network dials a raw TCP printer port, usually 9100, per job.
type Network struct {
	Address string
	Timeout time.Duration
}

func (p *Network) Print(ctx context.Context, data []byte) error {
	dialer := net.Dialer{Timeout: p.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", p.Address)
	if err != nil {
		return fmt.Errorf("printer: connect %s: %w", p.Address, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(10 * time.Second)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetWriteDeadline(deadline)
	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("printer: write %s: %w", p.Address, err)
	}
	return nil
}

// None rejects every job.
type None struct{}

func (None) Print(context.Context, []byte) error { return ErrNotConfigured }
