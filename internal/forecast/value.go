package forecast

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// MissingMarker is the wire form of a Missing value.
const MissingMarker = "-"

// Kind discriminates the variants of Value.
type Kind uint8

const (
	KindMissing Kind = iota
	KindNumeric
	KindText
)

// Value is a single cell reading: a number, an explicit "no data" marker, or
// free text for phrase rows. The zero Value is Missing.
type Value struct {
	kind Kind
	num  float64
	text string
}

// Numeric wraps a numeric reading.
func Numeric(v float64) Value { return Value{kind: KindNumeric, num: v} }

// Missing is the reading of a cell whose container carries no value.
func Missing() Value { return Value{kind: KindMissing} }

// Text wraps a phrase reading.
func Text(s string) Value { return Value{kind: KindText, text: s} }

func (v Value) Kind() Kind { return v.kind }

// Float returns the numeric reading and whether v is Numeric.
func (v Value) Float() (float64, bool) {
	return v.num, v.kind == KindNumeric
}

// Str returns the text reading and whether v is Text.
func (v Value) Str() (string, bool) {
	return v.text, v.kind == KindText
}

func (v Value) IsMissing() bool { return v.kind == KindMissing }

func (v Value) String() string {
	switch v.kind {
	case KindNumeric:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindText:
		return v.text
	default:
		return MissingMarker
	}
}

// MarshalJSON encodes Numeric as a JSON number, Text as a string and Missing
// as "-".
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumeric:
		return json.Marshal(v.num)
	case KindText:
		return json.Marshal(v.text)
	default:
		return json.Marshal(MissingMarker)
	}
}

// UnmarshalJSON reverses MarshalJSON. A string equal to "-" decodes as Missing.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = Missing()
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode value: %w", err)
		}
		if s == MissingMarker {
			*v = Missing()
		} else {
			*v = Text(s)
		}
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("decode value: %w", err)
	}
	*v = Numeric(f)
	return nil
}
