package forecast

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFixture(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile("testdata/forecast.html")
	require.NoError(t, err)
	return string(data)
}

func TestExtract_FullPage(t *testing.T) {
	res := quietExtractor().Extract(parse(t, loadFixture(t)))

	assert.Equal(t, []Block{
		{Numeric(0), Numeric(2), Numeric(5)},
		{Missing(), Numeric(1), Numeric(0)},
	}, res.SnowBlocks)
	assert.Equal(t, []Block{
		{Numeric(-3), Numeric(-1), Numeric(-5)},
		{Numeric(-2), Numeric(0), Numeric(-4)},
	}, res.TemperatureBlocks)
	assert.Equal(t, []Block{
		{Numeric(10), Numeric(15), Numeric(20)},
		{Numeric(25), Missing(), Numeric(5)},
	}, res.WindBlocks)
	assert.Equal(t, []Block{
		{Numeric(1000), Numeric(1200), Numeric(900)},
		{Numeric(1100), Numeric(1300), Numeric(800)},
	}, res.FreezingLevelBlocks)
	assert.Equal(t, []Block{
		{Numeric(0), Numeric(1), Numeric(2.5)},
		{Numeric(0.5), Numeric(0)},
	}, res.RainBlocks)
	assert.Equal(t, []Block{
		{Text("clear"), Text("light snow"), Text("snow showers")},
		{Text("cloudy"), Text("mod. snow"), Text("clear")},
	}, res.PhrasesBlocks)

	require.NotNil(t, res.BottomElevation)
	assert.Equal(t, 1100, *res.BottomElevation)
	assert.Equal(t, 3, res.MaxSnowBlockLength)
}

func TestExtract_MissingSnowRow(t *testing.T) {
	html := loadFixture(t)
	start := strings.Index(html, `<tr class="forecast-table__row" data-row="snow">`)
	require.NotEqual(t, -1, start)
	end := start + strings.Index(html[start:], "</tr>") + len("</tr>")
	html = html[:start] + html[end:]

	res := quietExtractor().Extract(parse(t, html))

	assert.NotNil(t, res.SnowBlocks)
	assert.Empty(t, res.SnowBlocks)
	assert.Equal(t, 0, res.MaxSnowBlockLength)
	assert.Len(t, res.TemperatureBlocks, 2)
	assert.Len(t, res.RainBlocks, 2)
	assert.Len(t, res.PhrasesBlocks, 2)
}

func TestExtract_EmptyDocument(t *testing.T) {
	res := quietExtractor().Extract(parse(t, "<html><body><p>maintenance</p></body></html>"))

	for _, d := range DataTypes {
		blocks := res.Blocks(d)
		assert.NotNil(t, blocks, d.String())
		assert.Empty(t, blocks, d.String())
	}
	assert.Nil(t, res.BottomElevation)
	assert.Equal(t, 0, res.MaxSnowBlockLength)
}

func TestExtract_BottomElevation(t *testing.T) {
	tests := []struct {
		name string
		link string
		want *int
	}{
		{"attribute", `<a class="elevation-control__link--bottom" data-elevation="850">ignored</a>`, intPtr(850)},
		{"text fallback", `<a class="elevation-control__link--bottom"> 1250m </a>`, intPtr(1250)},
		{"garbage attribute", `<a class="elevation-control__link--bottom" data-elevation="low">low</a>`, nil},
		{"garbage text", `<a class="elevation-control__link--bottom">base</a>`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			html := `<ul class="elevation-control__list"><li>` + tt.link + `</li></ul>`
			res := quietExtractor().Extract(parse(t, html))
			assert.Equal(t, tt.want, res.BottomElevation)
		})
	}
}

func intPtr(n int) *int { return &n }
