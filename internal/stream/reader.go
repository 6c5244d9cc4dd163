package stream

import (
	"errors"
	"io"
	"sync"

	"genprovider/internal/models"
	"genprovider/internal/provider"
)

const readBufferSize = 4096

// Reader adapts a streamed HTTP body to provider.Stream. Recv must not be
// called concurrently; Close may be called from any goroutine.
type Reader struct {
	name    string
	body    io.ReadCloser
	decoder *Decoder
	buf     []byte

	pending []models.StreamEvent
	done    bool
	err     error

	onFinish func(models.StreamEvent)
	onError  func(error)

	settle    sync.Once
	closeOnce sync.Once
	closeErr  error
}

// Option configures a Reader.
type Option func(*Reader)

// OnFinish registers a callback invoked once with the finished event.
func OnFinish(fn func(models.StreamEvent)) Option {
	return func(r *Reader) { r.onFinish = fn }
}

// OnError registers a callback invoked once when the stream fails or is
// closed before completion.
func OnError(fn func(error)) Option {
	return func(r *Reader) { r.onError = fn }
}

// NewReader wraps body. The reader owns body and closes it once the stream
// settles.
func NewReader(providerName string, body io.ReadCloser, framer Framer, opts ...Option) *Reader {
	r := &Reader{
		name:    providerName,
		body:    body,
		decoder: NewDecoder(providerName, framer),
		buf:     make([]byte, readBufferSize),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var _ provider.Stream = (*Reader)(nil)

// Recv returns the next event. After the finished event every call returns
// io.EOF; after a failure every call returns the same error.
func (r *Reader) Recv() (models.StreamEvent, error) {
	for {
		if len(r.pending) > 0 {
			ev := r.pending[0]
			r.pending = r.pending[1:]
			if ev.IsFinished() {
				r.pending = nil
				r.done = true
				r.finish(ev)
			}
			return ev, nil
		}
		if r.done {
			return models.StreamEvent{}, io.EOF
		}
		if r.err != nil {
			return models.StreamEvent{}, r.err
		}

		n, readErr := r.body.Read(r.buf)
		if n > 0 {
			events, err := r.decoder.Feed(r.buf[:n])
			r.pending = append(r.pending, events...)
			if err != nil {
				r.fail(err)
				continue
			}
		}
		switch {
		case readErr == nil:
		case errors.Is(readErr, io.EOF):
			if r.decoder.Finished() {
				continue
			}
			events, err := r.decoder.Close()
			r.pending = append(r.pending, events...)
			if err != nil {
				r.fail(err)
			}
		default:
			if r.decoder.Finished() {
				continue
			}
			r.fail(provider.FromTransport(r.name, readErr))
		}
	}
}

// Close releases the body. Closing before the finished event counts as a
// failed stream.
func (r *Reader) Close() error {
	r.settle.Do(func() {
		if r.onError != nil {
			r.onError(provider.NewError(provider.KindStreaming, r.name, "stream closed before completion"))
		}
	})
	return r.closeBody()
}

func (r *Reader) finish(ev models.StreamEvent) {
	r.settle.Do(func() {
		if r.onFinish != nil {
			r.onFinish(ev)
		}
	})
	_ = r.closeBody()
}

func (r *Reader) fail(err error) {
	if r.err != nil {
		return
	}
	r.err = err
	r.settle.Do(func() {
		if r.onError != nil {
			r.onError(err)
		}
	})
	_ = r.closeBody()
}

func (r *Reader) closeBody() error {
	r.closeOnce.Do(func() {
		r.closeErr = r.body.Close()
	})
	return r.closeErr
}
