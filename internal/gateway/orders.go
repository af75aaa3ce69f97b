package gateway

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/shopbot/internal/domain/order"
	"github.com/xenking/shopbot/internal/domain/promo"
	"github.com/xenking/shopbot/internal/remote"
)

// CreateOrder submits an order. A success response without an order id is
// reported as ErrMalformedResponse.
func (c *Client) CreateOrder(ctx context.Context, req order.Request) (order.Receipt, error) {
	key := req.IdempotencyKey
	if key == "" {
		key = uuid.NewString()
	}
	res, err := c.do(ctx, request{
		op:             "create_order",
		method:         http.MethodPost,
		path:           []string{"orders"},
		body:           encodeOrder(req),
		idempotencyKey: key,
	})
	if err != nil {
		return order.Receipt{}, errors.Wrap(err, "create order")
	}
	if !isSuccess(res.code) {
		return order.Receipt{}, errors.Wrap(&StatusError{Code: res.code}, "create order")
	}

	data, err := unwrap(res.body)
	if err != nil || jx.DecodeBytes(data).Next() != jx.Object {
		zctx.From(ctx).Warn("Order response is not an object", zap.Error(err))
		return order.Receipt{}, errors.Wrap(ErrMalformedResponse, "create order")
	}
	r, err := decodeReceipt(jx.DecodeBytes(data))
	if err != nil {
		zctx.From(ctx).Warn("Order response is undecodable", zap.Error(err))
		return order.Receipt{}, errors.Wrap(ErrMalformedResponse, "create order")
	}
	if r.ID == "" {
		return order.Receipt{}, errors.Wrap(ErrMalformedResponse, "create order: missing order_id")
	}
	return r, nil
}

// ValidatePromo asks the backend about code. A 404 is reported as empty;
// callers treat both empty and !Valid as a rejected code.
func (c *Client) ValidatePromo(ctx context.Context, code string) remote.Result[promo.Validation] {
	code = promo.NormalizeCode(code)
	if !validSegment(code) {
		return remote.Empty[promo.Validation]()
	}
	lg := zctx.From(ctx).With(zap.String("op", "validate_promo"))

	// No envelope stripping: validity and amount may sit at either level.
	body, found, err := c.fetch(ctx, "validate_promo", []string{"promocodes", url.PathEscape(code)}, nil)
	if err != nil {
		lg.Warn("Backend read failed", zap.Error(err))
		return remote.Failed[promo.Validation](err)
	}
	if !found || isNull(body) {
		return remote.Empty[promo.Validation]()
	}
	v, err := decodePromo(body, code)
	if err != nil {
		lg.Warn("Backend returned undecodable body", zap.Error(err))
		return remote.Failed[promo.Validation](err)
	}
	return remote.OK(v)
}
