package gateway

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/xenking/shopbot/internal/domain/catalog"
	"github.com/xenking/shopbot/internal/remote"
)

// ListProducts returns products matching f.
func (c *Client) ListProducts(ctx context.Context, f catalog.Filter) remote.Result[[]catalog.Product] {
	q := url.Values{}
	if f.CategoryID != "" {
		q.Set("category_id", f.CategoryID)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		q.Set("search", s)
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	return get(ctx, c, "list_products", []string{"products"}, q, decodeProducts, emptySlice[catalog.Product])
}

// GetProduct returns a single product.
func (c *Client) GetProduct(ctx context.Context, id string) remote.Result[catalog.Product] {
	if !validSegment(id) {
		return remote.Empty[catalog.Product]()
	}
	return get(ctx, c, "get_product", []string{"products", url.PathEscape(id)}, nil, decodeProduct, nil)
}

// ListCategories returns all categories.
func (c *Client) ListCategories(ctx context.Context) remote.Result[[]catalog.Category] {
	return get(ctx, c, "list_categories", []string{"categories"}, nil, decodeCategories, emptySlice[catalog.Category])
}

// validSegment rejects values that would change the request path.
func validSegment(s string) bool {
	return s != "" && s != "." && s != ".."
}
