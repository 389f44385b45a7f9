// Package wire holds the JSON shapes exchanged with the store backend.
//
// Money travels as decimal strings with two fractional digits ("1000.00"),
// stock quantities as decimals that are floored to whole sell units, line
// quantities as whole numbers, and ids as either JSON numbers or strings.
package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrOutOfRange         = errors.New("value out of range")
	ErrFractionalQuantity = errors.New("quantity must be a whole number")
)

var (
	maxCents    = decimal.NewFromInt(math.MaxInt64)
	maxQuantity = decimal.NewFromInt(math.MaxInt32)
)

type Money struct {
	d decimal.Decimal
}

func Cents(cents int64) Money {
	return Money{d: decimal.New(cents, -2)}
}

func ParseMoney(raw string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return Money{}, fmt.Errorf("parse amount %q: %w", raw, err)
	}
	if err := checkCents(d); err != nil {
		return Money{}, fmt.Errorf("parse amount %q: %w", raw, err)
	}
	return Money{d: d}, nil
}

// checkCents rejects amounts whose cent value does not fit in int64.
func checkCents(d decimal.Decimal) error {
	if d.Shift(2).Round(0).Abs().GreaterThan(maxCents) {
		return ErrOutOfRange
	}
	return nil
}

// Cents rounds half away from zero to the nearest hundredth.
func (m Money) Cents() int64 {
	return m.d.Shift(2).Round(0).IntPart()
}

func (m Money) String() string {
	return m.d.StringFixed(2)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.d.StringFixed(2))
}

func (m *Money) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		m.d = decimal.Zero
		return nil
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("decode amount: %w", err)
	}
	if err := checkCents(d); err != nil {
		return fmt.Errorf("decode amount %s: %w", d.String(), err)
	}
	m.d = d
	return nil
}

// Quantity is a stock level read from the backend, floored to whole units.
type Quantity int

func (q Quantity) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Itoa(int(q))), nil
}

func (q *Quantity) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*q = 0
		return nil
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("decode quantity: %w", err)
	}
	floored := d.Floor()
	if floored.Abs().GreaterThan(maxQuantity) {
		return fmt.Errorf("decode quantity %s: %w", d.String(), ErrOutOfRange)
	}
	*q = Quantity(floored.IntPart())
	return nil
}

// Count is a line quantity the sender chose. Unlike Quantity it is never
// rounded: fractional or oversized values fail to decode.
type Count int

func (c Count) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Itoa(int(c))), nil
}

func (c *Count) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*c = 0
		return nil
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("decode quantity: %w", err)
	}
	if !d.IsInteger() {
		return fmt.Errorf("decode quantity %s: %w", d.String(), ErrFractionalQuantity)
	}
	if d.Abs().GreaterThan(maxQuantity) {
		return fmt.Errorf("decode quantity %s: %w", d.String(), ErrOutOfRange)
	}
	*c = Count(d.IntPart())
	return nil
}

// ID accepts numeric and string identifiers and keeps them as text.
type ID string

func (id ID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte("null"), nil
	}
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(strconv.FormatInt(n, 10)), nil
	}
	return json.Marshal(string(id))
}

func (id *ID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*id = ""
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return fmt.Errorf("decode id: %w", err)
	}
	*id = ID(n.String())
	return nil
}
