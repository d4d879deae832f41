package transport

import (
	"context"
	"net/url"
)

// Requester общий HTTP-слой, через который ходят все обертки ресурсов.
type Requester interface {
	Get(ctx context.Context, path string, params url.Values) (*Response, error)
	Post(ctx context.Context, path string, body any) (*Response, error)
	Put(ctx context.Context, path string, body any) (*Response, error)
	Patch(ctx context.Context, path string, body any) (*Response, error)
	Del(ctx context.Context, path string) (*Response, error)
}
