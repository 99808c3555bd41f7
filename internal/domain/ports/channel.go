package ports

import (
	"context"
	"time"

	"github.com/carlosrabelo/vlanctl/internal/domain/entities"
)

// Channel is an authenticated duplex CLI stream to one switch
type Channel interface {
	Write(p []byte) (int, error)
	// ReadAvailable returns the bytes available now, or waits up to wait for
	// the first ones. It returns (nil, nil) when the wait elapses with nothing,
	// io.EOF once the remote side closed and ctx.Err() when ctx ends.
	ReadAvailable(ctx context.Context, wait time.Duration) ([]byte, error)
	// Close releases the stream; calling it more than once is safe.
	Close() error
}

// ChannelOpener opens a Channel for the given parameters
type ChannelOpener interface {
	Open(ctx context.Context, params entities.ConnectionParameters) (Channel, error)
}
