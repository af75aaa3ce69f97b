package gateway

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/shopbot/internal/domain/activity"
	"github.com/xenking/shopbot/internal/domain/order"
	"github.com/xenking/shopbot/internal/domain/user"
	"github.com/xenking/shopbot/internal/remote"
)

// UpsertUser creates or updates the backend record for u.
func (c *Client) UpsertUser(ctx context.Context, u user.User) error {
	res, err := c.do(ctx, request{
		op:     "upsert_user",
		method: http.MethodPost,
		path:   []string{"users"},
		body:   encodeUser(u),
	})
	if err != nil {
		return errors.Wrap(err, "upsert user")
	}
	if !isSuccess(res.code) {
		return errors.Wrap(&StatusError{Code: res.code}, "upsert user")
	}
	return nil
}

// UserOrders returns the order history of a user.
func (c *Client) UserOrders(ctx context.Context, userID int64) remote.Result[[]order.Summary] {
	path := []string{"users", strconv.FormatInt(userID, 10), "orders"}
	return get(ctx, c, "user_orders", path, nil, decodeSummaries, emptySlice[order.Summary])
}

// PaymentRouting returns the payment details assigned to a user.
func (c *Client) PaymentRouting(ctx context.Context, userID int64) remote.Result[order.Routing] {
	path := []string{"users", strconv.FormatInt(userID, 10), "zelle"}
	return get(ctx, c, "payment_routing", path, nil, decodeRouting, nil)
}

// TrackActivity reports an activity event. Failures are logged and dropped.
func (c *Client) TrackActivity(ctx context.Context, e activity.Event) {
	lg := zctx.From(ctx)
	res, err := c.do(ctx, request{
		op:     "track_activity",
		method: http.MethodPost,
		path:   []string{"user-activity"},
		body:   encodeActivity(e),
	})
	if err == nil && !isSuccess(res.code) {
		err = &StatusError{Code: res.code}
	}
	if err != nil {
		lg.Debug("Activity not recorded",
			zap.String("activity", string(e.Type)),
			zap.Error(err),
		)
	}
}
