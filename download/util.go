package download

import (
	"context"
	"io"
)

// ContextReader is an io.Reader that stops returning data once its context
// is done. The underlying http body is closed by the transport when the
// request context expires, so an in-flight Read unblocks on its own.
type ContextReader struct {
	ctx context.Context
	r   io.Reader
}

func NewContextReader(ctx context.Context, r io.Reader) *ContextReader {
	return &ContextReader{
		ctx: ctx,
		r:   r,
	}
}

// Read implements io.Reader#Read(), checking the context before each read.
func (cr *ContextReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
