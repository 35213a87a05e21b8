// Package datasource defines where the raw bytes of a run come from.
package datasource

import (
	"context"
	"io"
)

// Source opens the raw input. The caller closes the returned reader.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// Sniffer is implemented by sources that can return the first bytes of
// their content without consuming the stream handed out by Open.
type Sniffer interface {
	Peek(ctx context.Context, n int) ([]byte, error)
}
