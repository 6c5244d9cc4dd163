// Package stream turns streamed HTTP bodies into normalized StreamEvents.
//
// Network reads do not align with record boundaries, so decoding is done by
// a per-connection Decoder that keeps the trailing partial line buffered
// until its newline arrives. Backend framing (SSE data lines, typed SSE
// events, newline-delimited JSON) is supplied by a Framer.
package stream

import (
	"bytes"
	"errors"
	"fmt"

	"genprovider/internal/models"
	"genprovider/internal/provider"
)

// MaxLineBytes bounds a single buffered line.
const MaxLineBytes = 1 << 20

// Framer interprets complete lines for one backend. Implementations may keep
// per-connection state (usage, finish reason) between lines.
type Framer interface {
	// Line handles one non-blank line with its line terminator removed.
	// The slice is only valid for the duration of the call.
	Line(line []byte) (ev models.StreamEvent, emit bool, err error)
	// End is called once when the transport closes before a finished event.
	// Returning emit=false and a nil error is treated as a truncated stream.
	End() (ev models.StreamEvent, emit bool, err error)
}

// Decoder is a stateful line decoder. It is not safe for concurrent use.
type Decoder struct {
	provider string
	framer   Framer
	residual []byte
	finished bool
	closed   bool
}

// NewDecoder creates a decoder for one connection.
func NewDecoder(providerName string, framer Framer) *Decoder {
	return &Decoder{provider: providerName, framer: framer}
}

// Finished reports whether the terminal event has been produced.
func (d *Decoder) Finished() bool {
	return d.finished
}

// Buffered returns the number of bytes held back waiting for a newline.
func (d *Decoder) Buffered() int {
	return len(d.residual)
}

// Feed appends a network chunk and returns the events completed by it.
// Input after the finished event is ignored.
func (d *Decoder) Feed(chunk []byte) ([]models.StreamEvent, error) {
	if d.finished || d.closed {
		return nil, nil
	}
	d.residual = append(d.residual, chunk...)

	var events []models.StreamEvent
	for {
		idx := bytes.IndexByte(d.residual, '\n')
		if idx < 0 {
			break
		}
		line := d.residual[:idx]
		d.residual = d.residual[idx+1:]

		ev, emit, err := d.frame(line)
		if err != nil {
			return events, err
		}
		if emit {
			events = append(events, ev)
			if ev.IsFinished() {
				d.finished = true
				d.residual = nil
				return events, nil
			}
		}
	}

	if len(d.residual) > MaxLineBytes {
		return events, provider.NewError(provider.KindStreaming, d.provider,
			fmt.Sprintf("stream line exceeds %d bytes", MaxLineBytes))
	}
	if len(d.residual) == 0 {
		d.residual = nil
	}
	return events, nil
}

// Close signals end of transport. A residual line without a trailing
// newline is decoded as a final line; if no finished event has been seen,
// the framer decides whether the close completes the stream.
func (d *Decoder) Close() ([]models.StreamEvent, error) {
	if d.finished || d.closed {
		return nil, nil
	}
	d.closed = true

	var events []models.StreamEvent
	if len(d.residual) > 0 {
		line := d.residual
		d.residual = nil
		ev, emit, err := d.frame(line)
		if err != nil {
			return nil, err
		}
		if emit {
			events = append(events, ev)
			if ev.IsFinished() {
				d.finished = true
				return events, nil
			}
		}
	}

	ev, emit, err := d.framer.End()
	if err != nil {
		return events, d.asStreamingError(err)
	}
	if !emit || !ev.IsFinished() {
		return events, provider.NewError(provider.KindStreaming, d.provider, "stream closed before completion")
	}
	d.finished = true
	return append(events, ev), nil
}

func (d *Decoder) frame(line []byte) (models.StreamEvent, bool, error) {
	line = bytes.TrimSuffix(line, []byte{'\r'})
	if len(bytes.TrimSpace(line)) == 0 {
		return models.StreamEvent{}, false, nil
	}
	ev, emit, err := d.framer.Line(line)
	if err != nil {
		return models.StreamEvent{}, false, d.asStreamingError(err)
	}
	return ev, emit, nil
}

func (d *Decoder) asStreamingError(err error) error {
	var perr *provider.Error
	if errors.As(err, &perr) {
		return err
	}
	return provider.WrapError(provider.KindStreaming, d.provider, "decode stream record", err)
}

// SSEData extracts the payload of an SSE "data:" line. Other SSE fields
// (event, id, retry, comments) report ok=false.
func SSEData(line []byte) (payload []byte, ok bool) {
	rest, found := bytes.CutPrefix(line, []byte("data:"))
	if !found {
		return nil, false
	}
	return bytes.TrimPrefix(rest, []byte(" ")), true
}
