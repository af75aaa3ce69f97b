package push

import (
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// Payload is the body accepted by every push endpoint.
type Payload struct {
	TelegramID     int64  `validate:"required"`
	Message        string `validate:"required"`
	OrderID        string
	TrackingNumber string
	ReminderType   string
}

// decodePayload reads a push body. Identifiers may arrive as JSON numbers
// or strings; unknown fields are ignored.
func decodePayload(body []byte) (Payload, error) {
	var p Payload
	err := jx.DecodeBytes(body).ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "telegram_id":
			p.TelegramID, err = decodeChatID(d)
		case "message":
			p.Message, err = decodeText(d)
		case "order_id":
			p.OrderID, err = decodeText(d)
		case "tracking_number":
			p.TrackingNumber, err = decodeText(d)
		case "reminder_type":
			p.ReminderType, err = decodeText(d)
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, string(key))
		}
		return nil
	})
	if err != nil {
		return Payload{}, err
	}
	p.Message = strings.TrimSpace(p.Message)
	p.OrderID = strings.TrimSpace(p.OrderID)
	p.TrackingNumber = strings.TrimSpace(p.TrackingNumber)
	return p, nil
}

func decodeChatID(d *jx.Decoder) (int64, error) {
	switch d.Next() {
	case jx.Number:
		return d.Int64()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return 0, err
		}
		if s == "" {
			return 0, nil
		}
		return strconv.ParseInt(s, 10, 64)
	case jx.Null:
		return 0, d.Null()
	default:
		return 0, errors.Errorf("unexpected %s", d.Next())
	}
}

func decodeText(d *jx.Decoder) (string, error) {
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
		return "", errors.Errorf("unexpected %s", d.Next())
	}
}
