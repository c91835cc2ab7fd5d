package input

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/tarm/serial"
)

// DefaultAck is the line a click device answers after performing a click.
const DefaultAck = "received"

// SerialClicker drives an external HID device (e.g. an Arduino Leonardo)
// over a serial line. Each click is sent as "click:X,Y\n" and the device
// must answer with the ack line.
type SerialClicker struct {
	Ack        string
	AckTimeout time.Duration

	mu      sync.Mutex
	port    io.ReadWriter
	rd      *bufio.Reader
	pending chan reply // read still in flight after a timeout
}

type reply struct {
	line string
	err  error
}

// NewSerialClicker wraps an open port.
func NewSerialClicker(port io.ReadWriter, ack string, ackTimeout time.Duration) *SerialClicker {
	if ack == "" {
		ack = DefaultAck
	}
	return &SerialClicker{Ack: ack, AckTimeout: ackTimeout, port: port, rd: bufio.NewReader(port)}
}

// OpenSerialClicker opens the serial device and returns a clicker on it.
func OpenSerialClicker(name string, baud int, ack string, ackTimeout time.Duration) (*SerialClicker, io.Closer, error) {
	port, err := serial.OpenPort(&serial.Config{Name: name, Baud: baud, ReadTimeout: ackTimeout})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open serial port %s: %w", name, err)
	}
	return NewSerialClicker(port, ack, ackTimeout), port, nil
}

// Click sends the click command and waits for the device to acknowledge it.
func (c *SerialClicker) Click(ctx context.Context, p image.Point) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending != nil {
		select {
		case <-c.pending:
			c.pending = nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if _, err := fmt.Fprintf(c.port, "click:%d,%d\n", p.X, p.Y); err != nil {
		return fmt.Errorf("failed to send click: %w", err)
	}

	done := make(chan reply, 1)
	go func() {
		line, err := c.rd.ReadString('\n')
		done <- reply{line: line, err: err}
	}()

	var timeout <-chan time.Time
	if c.AckTimeout > 0 {
		timer := time.NewTimer(c.AckTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case r := <-done:
		got := strings.TrimSpace(r.line)
		if r.err != nil && got == "" {
			return fmt.Errorf("failed to read ack: %w", r.err)
		}
		if got != c.Ack {
			return fmt.Errorf("unexpected device reply %q", got)
		}
		return nil
	case <-timeout:
		c.pending = done
		return fmt.Errorf("no ack from device within %s", c.AckTimeout)
	case <-ctx.Done():
		c.pending = done
		return ctx.Err()
	}
}
