package gateway

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/shopbot/internal/remote"
)

// fetch performs a GET and returns the raw body. found is false for 404.
func (c *Client) fetch(ctx context.Context, op string, path []string, query url.Values) (body []byte, found bool, err error) {
	res, err := c.do(ctx, request{op: op, method: http.MethodGet, path: path, query: query})
	if err != nil {
		return nil, false, err
	}
	if res.code == http.StatusNotFound {
		return nil, false, nil
	}
	if !isSuccess(res.code) {
		return nil, false, &StatusError{Code: res.code}
	}
	return res.body, true, nil
}

// get performs a read and classifies its outcome. decode receives the body
// with any envelope removed; isEmpty reports decoded values that mean
// "nothing", such as empty collections.
func get[T any](
	ctx context.Context,
	c *Client,
	op string,
	path []string,
	query url.Values,
	decode func(d *jx.Decoder) (T, error),
	isEmpty func(T) bool,
) remote.Result[T] {
	lg := zctx.From(ctx).With(zap.String("op", op))

	body, found, err := c.fetch(ctx, op, path, query)
	if err != nil {
		lg.Warn("Backend read failed", zap.Error(err))
		return remote.Failed[T](err)
	}
	if !found {
		return remote.Empty[T]()
	}

	data, err := unwrap(body)
	if err != nil {
		lg.Warn("Backend returned undecodable body", zap.Error(err))
		return remote.Failed[T](err)
	}
	if isNull(data) {
		return remote.Empty[T]()
	}
	v, err := decode(jx.DecodeBytes(data))
	if err != nil {
		lg.Warn("Backend returned undecodable body", zap.Error(err))
		return remote.Failed[T](err)
	}
	if isEmpty != nil && isEmpty(v) {
		return remote.Empty[T]()
	}
	return remote.OK(v)
}

func emptySlice[T any](v []T) bool {
	return len(v) == 0
}
