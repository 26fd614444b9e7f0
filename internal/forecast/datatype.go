package forecast

import "fmt"

// DataType identifies one forecast metric row of the source table.
type DataType int

const (
	Snow DataType = iota
	Temperature
	Wind
	FreezingLevel
	Rain
	Phrases
)

// DataTypes lists every supported DataType in extraction order.
var DataTypes = []DataType{Snow, Temperature, Wind, FreezingLevel, Rain, Phrases}

// rule describes how one DataType reads a value out of a table cell.
type rule struct {
	name      string
	rowID     string // data-row attribute of the <tr>
	container string // selector of the value-bearing element inside the <td>
	attr      string // numeric attribute; empty means the text content is used
	transform func(float64) float64
}

// rules is indexed by DataType. Adding a DataType without a rule fails the
// length check in init.
var rules = [...]rule{
	Snow: {
		name:      "snow",
		rowID:     "snow",
		container: ".snow-amount",
		attr:      "data-value",
	},
	Temperature: {
		name:      "temperature",
		rowID:     "temperature-max",
		container: ".temp-value",
		attr:      "data-value",
		transform: func(v float64) float64 { return v + 1 },
	},
	Wind: {
		name:      "wind",
		rowID:     "wind",
		container: ".wind-icon",
		attr:      "data-speed",
	},
	FreezingLevel: {
		name:      "freezing-level",
		rowID:     "freezing-level",
		container: ".level-value",
		attr:      "data-value",
		transform: func(v float64) float64 { return v + 100 },
	},
	Rain: {
		name:      "rain",
		rowID:     "rain",
		container: ".rain-amount",
		attr:      "data-value",
		transform: func(v float64) float64 { return v / 10 },
	},
	Phrases: {
		name:      "phrases",
		rowID:     "phrases",
		container: ".forecast-table__phrase",
	},
}

func init() {
	if len(rules) != len(DataTypes) {
		panic("forecast: rule table does not cover every DataType")
	}
}

func (d DataType) valid() bool {
	return d >= 0 && int(d) < len(rules)
}

func (d DataType) rule() rule {
	return rules[d]
}

// String returns the wire name of the DataType, e.g. "freezing-level".
func (d DataType) String() string {
	if !d.valid() {
		return fmt.Sprintf("DataType(%d)", int(d))
	}
	return rules[d].name
}

// RowID returns the data-row identifier of the table row holding this DataType.
func (d DataType) RowID() string {
	if !d.valid() {
		return ""
	}
	return rules[d].rowID
}

// ParseDataType resolves a wire name back to its DataType.
func ParseDataType(s string) (DataType, error) {
	for _, d := range DataTypes {
		if rules[d].name == s {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown data type %q", s)
}
