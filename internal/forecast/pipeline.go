package forecast

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	rowSelector             = `tr.forecast-table__row[data-row=%q]`
	cellSelector            = "td.forecast-table__cell"
	bottomElevationSelector = ".elevation-control__list .elevation-control__link--bottom"
	elevationAttr           = "data-elevation"
)

// Extract runs the segmenter over every DataType row of doc and reads the
// bottom elevation. Missing rows produce empty block sequences and a missing
// or malformed elevation produces a nil BottomElevation.
func (e *Extractor) Extract(doc *goquery.Document) *Result {
	res := &Result{}
	for _, d := range DataTypes {
		row := doc.Find(fmt.Sprintf(rowSelector, d.RowID())).First()
		if row.Length() == 0 {
			e.logger.Debug("forecast row not found", "data_type", d.String(), "row", d.RowID())
			res.setBlocks(d, []Block{})
			continue
		}
		res.setBlocks(d, e.Segment(row.Find(cellSelector), d))
	}

	res.BottomElevation = e.bottomElevation(doc.Selection)
	res.MaxSnowBlockLength = MaxBlockLength(res.SnowBlocks)
	return res
}

func (e *Extractor) bottomElevation(root *goquery.Selection) *int {
	el := root.Find(bottomElevationSelector).First()
	if el.Length() == 0 {
		e.logger.Warn("bottom elevation not found")
		return nil
	}

	raw, ok := el.Attr(elevationAttr)
	if !ok {
		raw = leadingNumber(strings.TrimSpace(el.Text()))
	}

	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		e.logger.Warn("bottom elevation unparseable", "raw", raw, "err", err)
		return nil
	}
	return &n
}

// leadingNumber returns the optionally signed run of digits at the start of s,
// so "1100m" yields "1100".
func leadingNumber(s string) string {
	end := 0
	for i, r := range s {
		if ('0' <= r && r <= '9') || (i == 0 && r == '-') {
			end = i + 1
			continue
		}
		break
	}
	return s[:end]
}
