package runner

import (
	"fmt"
	"io"
	"os"
)

// OutputSink receives progress lines.
type OutputSink interface {
	// Write writes a line of output.
	Write(line string) error
	// Close closes the sink.
	Close() error
}

// StdioSink is an OutputSink that writes to stdout.
type StdioSink struct {
	Out io.Writer
}

// NewStdioSink creates a new sink that writes to stdout.
func NewStdioSink() *StdioSink {
	return &StdioSink{Out: os.Stdout}
}

// Write writes a line to the sink's writer.
func (s *StdioSink) Write(line string) error {
	_, err := fmt.Fprintln(s.Out, line)
	return err
}

// Close closes the sink (no-op for StdioSink).
func (s *StdioSink) Close() error {
	return nil
}

// DiscardSink drops all output.
type DiscardSink struct{}

// Write implements OutputSink.
func (DiscardSink) Write(string) error { return nil }

// Close implements OutputSink.
func (DiscardSink) Close() error { return nil }
