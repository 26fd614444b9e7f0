package forecast

import (
	"log/slog"

	"github.com/FranksOps/powder/internal/metrics"
	"github.com/PuerkitoBio/goquery"
)

// BoundaryClass marks the last cell of a forecast period. It may sit on the
// <td> itself or on the value container inside it.
const BoundaryClass = "is-day-end"

// Extractor turns forecast table markup into a Result. Extraction problems
// below the document level are logged and degrade to partial data.
type Extractor struct {
	logger *slog.Logger
}

// NewExtractor creates an Extractor logging to logger (slog.Default when nil).
func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger}
}

// Segment groups the values of d found in cells into blocks. A block closes
// after a cell carrying BoundaryClass and after the last cell of the row.
// Cells without a container for d are skipped without opening or closing a
// block. The returned slice is never nil.
func (e *Extractor) Segment(cells *goquery.Selection, d DataType) []Block {
	blocks := []Block{}
	var current Block
	last := cells.Length() - 1

	cells.Each(func(i int, cell *goquery.Selection) {
		v, container, err := extract(cell, d)
		if err != nil {
			e.logger.Warn("cell extraction failed", "data_type", d.String(), "cell", i, "err", err)
			metrics.ExtractionWarnings.WithLabelValues(d.String()).Inc()
			return
		}
		if container == nil {
			return
		}

		current = append(current, v)
		if isBoundary(cell, container) || i == last {
			blocks = append(blocks, current)
			current = nil
		}
	})

	// The last cell may have lacked a container; its predecessors still form
	// a period.
	if len(current) > 0 {
		blocks = append(blocks, current)
	}
	return blocks
}

func isBoundary(cell, container *goquery.Selection) bool {
	return cell.HasClass(BoundaryClass) || container.HasClass(BoundaryClass)
}
