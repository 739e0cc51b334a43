package bridge

import (
	"context"

	"fastbridge/pkg/httpservice"
)

// NewService returns a Builder that serves every connection with a Conn of
// a new Bridge. The Conn is always ready: backpressure is expressed through
// body streaming only.
func NewService(factory Factory, opts []Option, builderOpts ...httpservice.BuilderOption) *httpservice.Builder {
	b := New(factory, opts...)
	return httpservice.NewBuilder(httpservice.Enclose(b.buildService, httpservice.UncheckedReady), builderOpts...)
}

func (b *Bridge) buildService(ctx context.Context) (httpservice.Service, error) {
	c, err := b.Build(ctx)
	if err != nil {
		return nil, err
	}
	return c, nil
}
