package forecast

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractCell reads the value of d from a single table cell. present is false
// when the cell has no container for d; such cells take no part in
// segmentation. A container without a value yields Missing. An unparseable
// value returns an error and present == false.
func ExtractCell(cell *goquery.Selection, d DataType) (v Value, present bool, err error) {
	v, container, err := extract(cell, d)
	if err != nil || container == nil {
		return Value{}, false, err
	}
	return v, true, nil
}

// extract returns the container it read from so the segmenter can inspect it
// for a boundary marker. A nil container means not present.
func extract(cell *goquery.Selection, d DataType) (Value, *goquery.Selection, error) {
	if !d.valid() {
		return Value{}, nil, fmt.Errorf("unknown data type %d", int(d))
	}
	r := d.rule()

	container := cell.Find(r.container).First()
	if container.Length() == 0 {
		return Value{}, nil, nil
	}

	if r.attr == "" {
		return Text(strings.TrimSpace(container.Text())), container, nil
	}

	raw, ok := container.Attr(r.attr)
	raw = strings.TrimSpace(raw)
	if !ok || raw == "" || raw == MissingMarker {
		return Missing(), container, nil
	}

	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return Value{}, nil, fmt.Errorf("%s %s=%q: %w", d, r.attr, raw, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}, nil, fmt.Errorf("%s %s=%q: not a finite number", d, r.attr, raw)
	}
	if r.transform != nil {
		f = r.transform(f)
	}
	return Numeric(f), container, nil
}
