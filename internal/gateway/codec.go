package gateway

import (
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/shopbot/internal/domain/activity"
	"github.com/xenking/shopbot/internal/domain/catalog"
	"github.com/xenking/shopbot/internal/domain/order"
	"github.com/xenking/shopbot/internal/domain/promo"
	"github.com/xenking/shopbot/internal/domain/user"
)

// unwrap strips a Laravel style {"data": ...} envelope. Bodies without one
// are returned as is.
func unwrap(body []byte) ([]byte, error) {
	d := jx.DecodeBytes(body)
	if d.Next() != jx.Object {
		return body, nil
	}
	var data jx.Raw
	if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != "data" {
			return d.Skip()
		}
		raw, err := d.Raw()
		data = raw
		return err
	}); err != nil {
		return nil, errors.Wrap(err, "decode envelope")
	}
	if data == nil {
		return body, nil
	}
	return data, nil
}

// isNull reports whether body holds no value.
func isNull(body []byte) bool {
	s := strings.TrimSpace(string(body))
	return s == "" || s == "null"
}

// decodeID reads an identifier sent either as a number or a string.
func decodeID(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.String:
		return d.Str()
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return "", err
		}
		return n.String(), nil
	case jx.Null:
		return "", d.Null()
	default:
		return "", errors.Errorf("unexpected %s for id", d.Next())
	}
}

// decodeString reads a string, mapping null and scalars to text.
func decodeString(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.String:
		return d.Str()
	case jx.Null:
		return "", d.Null()
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return "", err
		}
		return n.String(), nil
	default:
		return "", d.Skip()
	}
}

// decodeDecimal reads a money amount. Laravel serializes decimal columns as
// strings, computed values as numbers.
func decodeDecimal(d *jx.Decoder) (decimal.NullDecimal, error) {
	var s string
	switch d.Next() {
	case jx.String:
		v, err := d.Str()
		if err != nil {
			return decimal.NullDecimal{}, err
		}
		s = strings.TrimSpace(v)
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.NullDecimal{}, err
		}
		s = n.String()
	case jx.Null:
		return decimal.NullDecimal{}, d.Null()
	default:
		return decimal.NullDecimal{}, errors.Errorf("unexpected %s for amount", d.Next())
	}
	if s == "" {
		return decimal.NullDecimal{}, nil
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, errors.Wrapf(err, "parse amount %q", s)
	}
	return decimal.NewNullDecimal(v), nil
}

// decodeBool accepts JSON booleans, 0/1 and their string forms.
func decodeBool(d *jx.Decoder) (bool, error) {
	switch d.Next() {
	case jx.Bool:
		return d.Bool()
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return false, err
		}
		return n.String() != "0", nil
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return false, err
		}
		b, _ := strconv.ParseBool(strings.TrimSpace(s))
		return b, nil
	case jx.Null:
		return false, d.Null()
	default:
		return false, d.Skip()
	}
}

func decodeTime(d *jx.Decoder) (time.Time, error) {
	s, err := decodeString(d)
	if err != nil || s == "" {
		return time.Time{}, err
	}
	for _, layout := range []string{time.RFC3339Nano, time.DateTime} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, nil
}

func decodeProduct(d *jx.Decoder) (catalog.Product, error) {
	var p catalog.Product
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			p.ID, err = decodeID(d)
		case "name":
			p.Name, err = decodeString(d)
		case "title":
			if p.Name == "" {
				p.Name, err = decodeString(d)
			} else {
				err = d.Skip()
			}
		case "price":
			var v decimal.NullDecimal
			v, err = decodeDecimal(d)
			p.Price = v.Decimal
		case "category_id":
			p.CategoryID, err = decodeID(d)
		case "category":
			if d.Next() != jx.Object {
				return d.Skip()
			}
			var c catalog.Category
			c, err = decodeCategory(d)
			if p.CategoryID == "" {
				p.CategoryID = c.ID
			}
		case "description":
			p.Description, err = decodeString(d)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return catalog.Product{}, errors.Wrap(err, "decode product")
	}
	if p.ID == "" {
		return catalog.Product{}, errors.Wrap(ErrMalformedResponse, "product without id")
	}
	return p, nil
}

func decodeProducts(d *jx.Decoder) ([]catalog.Product, error) {
	var out []catalog.Product
	err := d.Arr(func(d *jx.Decoder) error {
		p, err := decodeProduct(d)
		if err != nil {
			return err
		}
		out = append(out, p)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode products")
	}
	return out, nil
}

func decodeCategory(d *jx.Decoder) (catalog.Category, error) {
	var c catalog.Category
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			c.ID, err = decodeID(d)
		case "name":
			c.Name, err = decodeString(d)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return catalog.Category{}, errors.Wrap(err, "decode category")
	}
	return c, nil
}

func decodeCategories(d *jx.Decoder) ([]catalog.Category, error) {
	var out []catalog.Category
	err := d.Arr(func(d *jx.Decoder) error {
		c, err := decodeCategory(d)
		if err != nil {
			return err
		}
		out = append(out, c)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode categories")
	}
	return out, nil
}

func decodeReceipt(d *jx.Decoder) (order.Receipt, error) {
	var r order.Receipt
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "order_id":
			r.ID, err = decodeID(d)
		case "total_amount":
			r.Total, err = decodeDecimal(d)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return order.Receipt{}, errors.Wrap(err, "decode receipt")
	}
	return r, nil
}

func decodeSummary(d *jx.Decoder) (order.Summary, error) {
	var s order.Summary
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id", "order_id":
			s.ID, err = decodeID(d)
		case "status":
			s.Status, err = decodeString(d)
		case "total_amount", "total":
			var v decimal.NullDecimal
			v, err = decodeDecimal(d)
			if v.Valid {
				s.Total = v.Decimal
			}
		case "items_count":
			var v string
			v, err = decodeString(d)
			if n, convErr := strconv.Atoi(v); convErr == nil {
				s.Items = n
			}
		case "items", "products":
			if d.Next() != jx.Array {
				return d.Skip()
			}
			n := 0
			err = d.Arr(func(d *jx.Decoder) error {
				n++
				return d.Skip()
			})
			if s.Items == 0 {
				s.Items = n
			}
		case "created_at":
			s.CreatedAt, err = decodeTime(d)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return order.Summary{}, errors.Wrap(err, "decode order summary")
	}
	return s, nil
}

func decodeSummaries(d *jx.Decoder) ([]order.Summary, error) {
	var out []order.Summary
	err := d.Arr(func(d *jx.Decoder) error {
		s, err := decodeSummary(d)
		if err != nil {
			return err
		}
		out = append(out, s)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode orders")
	}
	return out, nil
}

func decodeRouting(d *jx.Decoder) (order.Routing, error) {
	var r order.Routing
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "configured":
			r.Configured, err = decodeBool(d)
		case "email":
			r.Email, err = decodeString(d)
		case "phone":
			r.Phone, err = decodeString(d)
		case "name":
			r.Name, err = decodeString(d)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return order.Routing{}, errors.Wrap(err, "decode payment routing")
	}
	return r, nil
}

// discountKeys are the fields a backend may use for the discount amount, in
// order of preference.
var discountKeys = []string{
	"discount_value",
	"discount_percent",
	"discount",
	"percentage",
	"percent",
	"value",
}

// promoFields holds the raw fields of one level of a promo response.
type promoFields map[string]jx.Raw

func collectPromoFields(d *jx.Decoder) (promoFields, error) {
	f := promoFields{}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		raw, err := d.Raw()
		if err != nil {
			return err
		}
		f[key] = raw
		return nil
	})
	return f, err
}

func (f promoFields) bool(key string) (bool, bool) {
	raw, ok := f[key]
	if !ok {
		return false, false
	}
	v, err := decodeBool(jx.DecodeBytes(raw))
	return v, err == nil
}

func (f promoFields) string(key string) string {
	raw, ok := f[key]
	if !ok {
		return ""
	}
	v, _ := decodeString(jx.DecodeBytes(raw))
	return v
}

// amount returns the first non-zero discount field.
func (f promoFields) amount() (decimal.Decimal, bool) {
	for _, key := range discountKeys {
		raw, ok := f[key]
		if !ok {
			continue
		}
		v, err := decodeDecimal(jx.DecodeBytes(raw))
		if err != nil || !v.Valid || v.Decimal.IsZero() {
			continue
		}
		return v.Decimal, true
	}
	return decimal.Zero, false
}

// decodePromo reads a promo validation answer. Fields are looked up under
// "data" first, then at the top level.
func decodePromo(body []byte, code string) (promo.Validation, error) {
	top, err := collectPromoFields(jx.DecodeBytes(body))
	if err != nil {
		return promo.Validation{}, errors.Wrap(err, "decode promo")
	}
	levels := []promoFields{top}
	if raw, ok := top["data"]; ok && jx.DecodeBytes(raw).Next() == jx.Object {
		data, err := collectPromoFields(jx.DecodeBytes(raw))
		if err != nil {
			return promo.Validation{}, errors.Wrap(err, "decode promo data")
		}
		levels = []promoFields{data, top}
	}

	v := promo.Validation{Discount: promo.Discount{Code: code, Type: promo.DiscountPercentage}}
	for _, f := range levels {
		if valid, ok := f.bool("valid"); ok && valid {
			v.Valid = true
		}
		if v.Message == "" {
			v.Message = f.string("message")
		}
	}
	for _, f := range levels {
		if t := f.string("discount_type"); t != "" {
			v.Discount.Type = promo.ParseDiscountType(t)
			break
		}
	}
	for _, f := range levels {
		if amount, ok := f.amount(); ok {
			v.Discount.Value = amount
			break
		}
	}
	return v, nil
}

// writeID writes numeric identifiers as JSON numbers.
func writeID(e *jx.Encoder, id string) {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		e.Int64(n)
		return
	}
	e.Str(id)
}

func writeOptString(e *jx.Encoder, v *string) {
	if v == nil {
		e.Null()
		return
	}
	e.Str(*v)
}

func encodeUser(u user.User) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("telegram_id")
	e.Int64(u.ID)
	e.FieldStart("username")
	e.Str(u.Username)
	e.FieldStart("first_name")
	e.Str(u.FirstName)
	e.FieldStart("last_name")
	e.Str(u.LastName)
	e.FieldStart("language_code")
	e.Str(u.LanguageCode)
	e.ObjEnd()
	return e.Bytes()
}

func encodeOrder(req order.Request) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("telegram_user_id")
	e.Int64(req.UserID)

	e.FieldStart("products")
	e.ArrStart()
	for _, l := range req.Lines {
		e.ObjStart()
		e.FieldStart("id")
		writeID(&e, l.ProductID)
		e.FieldStart("quantity")
		e.Int(l.Quantity)
		e.ObjEnd()
	}
	e.ArrEnd()

	e.FieldStart("payment_method")
	e.Str(req.PaymentMethod.String())
	e.FieldStart("customer_notes")
	e.Str(req.Notes)

	s := req.Shipping
	e.FieldStart("shipping_address")
	e.ObjStart()
	e.FieldStart("first_name")
	e.Str(s.FirstName)
	e.FieldStart("last_name")
	e.Str(s.LastName)
	e.FieldStart("street")
	e.Str(s.Street)
	e.FieldStart("city")
	e.Str(s.City)
	e.FieldStart("state")
	e.Str(s.State)
	e.FieldStart("zip")
	e.Str(s.Zip)
	e.FieldStart("phone")
	writeOptString(&e, s.Phone)
	e.FieldStart("apartment")
	writeOptString(&e, s.Apartment)
	e.FieldStart("company")
	writeOptString(&e, s.Company)
	e.FieldStart("full_address")
	e.Str(strings.Join(s.Lines(), ", "))
	e.ObjEnd()

	if req.Promocode != "" {
		e.FieldStart("promocode")
		e.Str(req.Promocode)
	}
	e.ObjEnd()
	return e.Bytes()
}

func encodeActivity(ev activity.Event) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("telegram_user_id")
	e.Int64(ev.UserID)
	e.FieldStart("activity_type")
	e.Str(string(ev.Type))
	e.FieldStart("activity_data")
	e.ObjStart()
	for k, v := range ev.Data {
		e.FieldStart(k)
		e.Str(v)
	}
	e.ObjEnd()
	e.ObjEnd()
	return e.Bytes()
}
