package report

import (
	"cmp"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"text/template"
	"time"

	"github.com/FranksOps/powder/internal/storage"
)

// Summary aggregates archived snapshots for the history command.
type Summary struct {
	TotalRuns int        `json:"totalRuns"`
	Failures  int        `json:"failures"`
	StartTime time.Time  `json:"startTime"`
	EndTime   time.Time  `json:"endTime"`
	URLs      []URLStats `json:"urls"`
}

// URLStats summarizes the snapshots of one URL.
type URLStats struct {
	URL             string        `json:"url"`
	Runs            int           `json:"runs"`
	Failures        int           `json:"failures"`
	AverageDuration time.Duration `json:"averageDuration"`
	LastSuccess     *time.Time    `json:"lastSuccess,omitempty"`
	LastError       string        `json:"lastError,omitempty"`
	// LastMaxSnowBlock is the longest snow block of the newest successful run.
	LastMaxSnowBlock int `json:"lastMaxSnowBlock"`
}

// GenerateSummary aggregates snaps in any order. URLs are sorted by name.
func GenerateSummary(snaps []*storage.Snapshot) Summary {
	s := Summary{URLs: []URLStats{}}
	if len(snaps) == 0 {
		return s
	}

	s.StartTime = snaps[0].CreatedAt
	s.EndTime = snaps[0].CreatedAt

	byURL := make(map[string]*URLStats)
	totals := make(map[string]time.Duration)
	lastError := make(map[string]time.Time)

	for _, snap := range snaps {
		s.TotalRuns++
		if snap.CreatedAt.Before(s.StartTime) {
			s.StartTime = snap.CreatedAt
		}
		if snap.CreatedAt.After(s.EndTime) {
			s.EndTime = snap.CreatedAt
		}

		u, ok := byURL[snap.URL]
		if !ok {
			u = &URLStats{URL: snap.URL}
			byURL[snap.URL] = u
		}
		u.Runs++
		totals[snap.URL] += snap.Duration

		if snap.Failed() {
			s.Failures++
			u.Failures++
			if at, seen := lastError[snap.URL]; !seen || snap.CreatedAt.After(at) {
				lastError[snap.URL] = snap.CreatedAt
				u.LastError = snap.Error
			}
			continue
		}

		if u.LastSuccess == nil || snap.CreatedAt.After(*u.LastSuccess) {
			at := snap.CreatedAt
			u.LastSuccess = &at
			if snap.Result != nil {
				u.LastMaxSnowBlock = snap.Result.MaxSnowBlockLength
			}
		}
	}

	for url, u := range byURL {
		u.AverageDuration = totals[url] / time.Duration(u.Runs)
		s.URLs = append(s.URLs, *u)
	}
	slices.SortFunc(s.URLs, func(a, b URLStats) int { return cmp.Compare(a.URL, b.URL) })
	return s
}

// WriteJSON writes the summary to the provided writer in JSON format.
func WriteJSON(w io.Writer, summary Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	return nil
}

const textTmpl = `Powder Scrape History
---------------------
Time:      {{if .TotalRuns}}{{.StartTime.Format "2006-01-02 15:04:05"}} - {{.EndTime.Format "2006-01-02 15:04:05"}}{{else}}no runs{{end}}
Runs:      {{.TotalRuns}}
Failures:  {{.Failures}}
{{range .URLs}}
{{.URL}}
  runs {{.Runs}}, failures {{.Failures}}, avg {{.AverageDuration}}
  {{- if .LastSuccess}}
  last success {{.LastSuccess.Format "2006-01-02 15:04:05"}} (max snow block {{.LastMaxSnowBlock}})
  {{- end}}
  {{- if .LastError}}
  last error: {{.LastError}}
  {{- end}}
{{end -}}
`

var textReport = template.Must(template.New("textReport").Parse(textTmpl))

// WriteText writes a human-readable text summary to the provided writer.
func WriteText(w io.Writer, summary Summary) error {
	if err := textReport.Execute(w, summary); err != nil {
		return fmt.Errorf("render summary: %w", err)
	}
	return nil
}
