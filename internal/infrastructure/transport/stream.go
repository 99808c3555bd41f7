package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"
)

const (
	BufferSize  = 4096
	chunkQueued = 64
)

// streamChannel turns a blocking reader into a ports.Channel. A single pump
// goroutine reads the stream and hands chunks over; ReadAvailable waits on
// them with a timer instead of sleeping.
type streamChannel struct {
	w      io.Writer
	closer func() error

	chunks  chan []byte
	done    chan struct{}
	readErr error

	closeOnce sync.Once
	closeErr  error
}

func newStreamChannel(r io.Reader, w io.Writer, closer func() error) *streamChannel {
	c := &streamChannel{
		w:      w,
		closer: closer,
		chunks: make(chan []byte, chunkQueued),
		done:   make(chan struct{}),
	}
	go c.pump(r)
	return c
}

func (c *streamChannel) pump(r io.Reader) {
	defer close(c.chunks)
	buffer := make([]byte, BufferSize)
	for {
		n, err := r.Read(buffer)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buffer[:n])
			select {
			case c.chunks <- chunk:
			case <-c.done:
				return
			}
		}
		if err != nil {
			c.readErr = err
			return
		}
	}
}

// Write sends raw bytes to the device
func (c *streamChannel) Write(p []byte) (int, error) {
	select {
	case <-c.done:
		return 0, net.ErrClosed
	default:
	}
	return c.w.Write(p)
}

// ReadAvailable implements ports.Channel
func (c *streamChannel) ReadAvailable(ctx context.Context, wait time.Duration) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []byte
	select {
	case chunk, ok := <-c.chunks:
		if !ok {
			return nil, c.streamErr()
		}
		out = append(out, chunk...)
	default:
		if wait <= 0 {
			return nil, nil
		}
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case chunk, ok := <-c.chunks:
			if !ok {
				return nil, c.streamErr()
			}
			out = append(out, chunk...)
		case <-timer.C:
			return nil, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.done:
			return nil, net.ErrClosed
		}
	}

	for {
		select {
		case chunk, ok := <-c.chunks:
			if !ok {
				return out, nil
			}
			out = append(out, chunk...)
		default:
			return out, nil
		}
	}
}

func (c *streamChannel) streamErr() error {
	select {
	case <-c.done:
		return net.ErrClosed
	default:
	}
	if c.readErr == nil || errors.Is(c.readErr, io.EOF) {
		return io.EOF
	}
	return c.readErr
}

// Close stops the pump and releases the underlying connection once
func (c *streamChannel) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.closer != nil {
			c.closeErr = c.closer()
		}
	})
	return c.closeErr
}
