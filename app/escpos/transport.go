package escpos

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"time"
)

// Transport is a byte stream to a physical printer. Open must be called
// before Write; Close is safe to call more than once. A transport is owned
// by exactly one print job at a time.
type Transport interface {
	Open(ctx context.Context) error
	io.Writer
	io.Closer
	Target() string
}

// DeviceOpenError wraps a failure to reach the device, keeping the target
// address for the caller's diagnostics.
type DeviceOpenError struct {
	Target string
	Err    error
}

func (e *DeviceOpenError) Error() string {
	return fmt.Sprintf("cannot open printer device %s: %v", e.Target, e.Err)
}

func (e *DeviceOpenError) Unwrap() error { return e.Err }

// USBTransport writes to a character device file (/dev/usb/lpN). Opening a
// wedged device file can block in the kernel, so the open runs on its own
// goroutine under a deadline.
type USBTransport struct {
	Device      string
	OpenTimeout time.Duration

	f *os.File
}

func (t *USBTransport) Target() string { return t.Device }

func (t *USBTransport) Open(ctx context.Context) error {
	timeout := t.OpenTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		f   *os.File
		err error
	}
	ch := make(chan result, 1)
	go func() {
		f, err := os.OpenFile(t.Device, os.O_RDWR, 0)
		ch <- result{f, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return &DeviceOpenError{Target: t.Device, Err: r.err}
		}
		t.f = r.f
		return nil
	case <-ctx.Done():
		// The goroutine still owns the eventual handle and closes it.
		go func() {
			if r := <-ch; r.f != nil {
				r.f.Close()
			}
		}()
		return &DeviceOpenError{Target: t.Device, Err: ctx.Err()}
	}
}

func (t *USBTransport) Write(p []byte) (int, error) {
	if t.f == nil {
		return 0, fmt.Errorf("usb transport not open")
	}
	return t.f.Write(p)
}

func (t *USBTransport) Close() error {
	if t.f == nil {
		return nil
	}
	err := t.f.Close()
	t.f = nil
	return err
}

// NetworkTransport dials a raw-socket printer, usually port 9100.
type NetworkTransport struct {
	Address     string
	OpenTimeout time.Duration

	conn net.Conn
}

func (t *NetworkTransport) Target() string { return t.Address }

func (t *NetworkTransport) Open(ctx context.Context) error {
	timeout := t.OpenTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", t.Address)
	if err != nil {
		return &DeviceOpenError{Target: t.Address, Err: err}
	}
	t.conn = conn
	return nil
}

func (t *NetworkTransport) Write(p []byte) (int, error) {
	if t.conn == nil {
		return 0, fmt.Errorf("network transport not open")
	}
	return t.conn.Write(p)
}

func (t *NetworkTransport) Close() error {
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}

// FileTransport writes the command stream to a regular file. Used for
// testing and for capturing receipts without a device attached.
type FileTransport struct {
	Path string

	f *os.File
}

func (t *FileTransport) Target() string { return t.Path }

func (t *FileTransport) Open(_ context.Context) error {
	f, err := os.Create(t.Path)
	if err != nil {
		return &DeviceOpenError{Target: t.Path, Err: err}
	}
	t.f = f
	return nil
}

func (t *FileTransport) Write(p []byte) (int, error) {
	if t.f == nil {
		return 0, fmt.Errorf("file transport not open")
	}
	return t.f.Write(p)
}

func (t *FileTransport) Close() error {
	if t.f == nil {
		return nil
	}
	err := t.f.Close()
	t.f = nil
	return err
}
