// Package report renders the mood digest: a one-page HTML or plain-text
// view of the combined store and the last run, with inline SVG charts.
package report

import (
	"fmt"
	"strings"

	"github.com/seenimoa/moodpulse/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// SVG Chart Generator
// ════════════════════════════════════════════════════════════════════

// ChartConfig holds rendering parameters for SVG charts.
type ChartConfig struct {
	Width        int    // SVG width in pixels (default: 800)
	Height       int    // SVG height in pixels (default: 400)
	MarginTop    int    // top margin (default: 40)
	MarginRight  int    // right margin (default: 60)
	MarginBottom int    // bottom margin (default: 30)
	MarginLeft   int    // left margin (default: 140)
	BgColor      string // background color (default: "#ffffff")
	GridColor    string // grid line color (default: "#e8e8e8")
	TextColor    string // label color (default: "#333333")
	FontSize     int    // label font size (default: 11)
	Title        string // chart title
}

// DefaultChartConfig returns sensible defaults for chart rendering.
func DefaultChartConfig() ChartConfig {
	return ChartConfig{
		Width:        800,
		Height:       400,
		MarginTop:    40,
		MarginRight:  60,
		MarginBottom: 30,
		MarginLeft:   140,
		BgColor:      "#ffffff",
		GridColor:    "#e8e8e8",
		TextColor:    "#333333",
		FontSize:     11,
	}
}

// plotArea returns the usable drawing area dimensions.
func (c ChartConfig) plotArea() (x, y, w, h int) {
	return c.MarginLeft, c.MarginTop,
		c.Width - c.MarginLeft - c.MarginRight,
		c.Height - c.MarginTop - c.MarginBottom
}

// ════════════════════════════════════════════════════════════════════
// Bar Chart (Horizontal)
// ════════════════════════════════════════════════════════════════════

// BarItem represents a single bar in a horizontal bar chart.
type BarItem struct {
	Label string
	Value float64
	Color string // optional, defaults to the calm blue
}

// HorizontalBarChart generates an SVG horizontal bar chart scaled to
// [0, maxVal]. A maxVal <= 0 scales to the largest item.
func HorizontalBarChart(items []BarItem, maxVal float64, cfg ChartConfig) string {
	if cfg.Width == 0 {
		cfg = DefaultChartConfig()
	}
	if len(items) == 0 {
		return emptySVG(cfg, "No data")
	}

	// Grow the canvas so bars never get thinner than ~18px.
	if minH := cfg.MarginTop + cfg.MarginBottom + len(items)*26; cfg.Height < minH {
		cfg.Height = minH
	}
	px, py, pw, ph := cfg.plotArea()

	if maxVal <= 0 {
		for _, item := range items {
			if item.Value > maxVal {
				maxVal = item.Value
			}
		}
		if maxVal <= 0 {
			maxVal = 1
		}
	}

	barH := float64(ph) / float64(len(items)) * 0.7
	if barH > 30 {
		barH = 30
	}
	gap := (float64(ph) - barH*float64(len(items))) / float64(len(items)+1)

	var sb strings.Builder
	sb.WriteString(svgHeader(cfg))
	sb.WriteString(fmt.Sprintf(`<rect x="0" y="0" width="%d" height="%d" fill="%s"/>`,
		cfg.Width, cfg.Height, cfg.BgColor))
	if cfg.Title != "" {
		sb.WriteString(fmt.Sprintf(`<text x="%d" y="20" font-size="14" font-weight="bold" fill="%s" text-anchor="middle">%s</text>`,
			cfg.Width/2, cfg.TextColor, escapeXML(cfg.Title)))
	}

	// Quarter grid lines
	for i := 1; i <= 4; i++ {
		gx := float64(px) + float64(pw)*float64(i)/4
		sb.WriteString(fmt.Sprintf(`<line x1="%.1f" y1="%d" x2="%.1f" y2="%d" stroke="%s" stroke-width="1"/>`,
			gx, py, gx, py+ph, cfg.GridColor))
	}

	for i, item := range items {
		by := float64(py) + gap + float64(i)*(barH+gap)
		color := item.Color
		if color == "" {
			color = models.MoodCalm.Color()
		}
		v := item.Value
		if v < 0 {
			v = 0
		}
		if v > maxVal {
			v = maxVal
		}
		bw := v / maxVal * float64(pw)

		sb.WriteString(fmt.Sprintf(`<rect x="%d" y="%.1f" width="%.1f" height="%.1f" fill="%s" rx="2"/>`,
			px, by, bw, barH, escapeXML(color)))

		// Label
		sb.WriteString(fmt.Sprintf(`<text x="%d" y="%.1f" font-size="%d" fill="%s" text-anchor="end">%s</text>`,
			px-5, by+barH/2+4, cfg.FontSize, cfg.TextColor, escapeXML(item.Label)))

		// Value
		sb.WriteString(fmt.Sprintf(`<text x="%.1f" y="%.1f" font-size="%d" fill="%s">%.0f</text>`,
			float64(px)+bw+5, by+barH/2+4, cfg.FontSize, cfg.TextColor, item.Value))
	}

	sb.WriteString("</svg>")
	return sb.String()
}

// IntensityChart draws one bar per entity, colored by mood and scaled to
// the maximum intensity.
func IntensityChart(rows []EntityRow, cfg ChartConfig) string {
	items := make([]BarItem, len(rows))
	for i, r := range rows {
		items[i] = BarItem{Label: r.Name, Value: float64(r.Intensity), Color: r.Color}
	}
	if cfg.Title == "" {
		cfg.Title = "Intensity (bpm)"
	}
	return HorizontalBarChart(items, models.MaxIntensity, cfg)
}

// MoodDistributionChart draws how many entities share each mood.
func MoodDistributionChart(counts []MoodCount, cfg ChartConfig) string {
	items := make([]BarItem, len(counts))
	for i, c := range counts {
		items[i] = BarItem{Label: string(c.Mood), Value: float64(c.Count), Color: c.Mood.Color()}
	}
	if cfg.Title == "" {
		cfg.Title = "Mood distribution"
	}
	return HorizontalBarChart(items, 0, cfg)
}

// ════════════════════════════════════════════════════════════════════
// SVG helpers
// ════════════════════════════════════════════════════════════════════

func svgHeader(cfg ChartConfig) string {
	return fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" font-family="sans-serif">`,
		cfg.Width, cfg.Height, cfg.Width, cfg.Height)
}

func emptySVG(cfg ChartConfig, msg string) string {
	if cfg.Width == 0 {
		cfg.Width = 400
	}
	if cfg.Height == 0 {
		cfg.Height = 200
	}
	return fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d"><rect width="%d" height="%d" fill="#f5f5f5"/><text x="%d" y="%d" text-anchor="middle" fill="#999" font-size="14">%s</text></svg>`,
		cfg.Width, cfg.Height, cfg.Width, cfg.Height, cfg.Width/2, cfg.Height/2, escapeXML(msg))
}

func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, `"`, "&quot;")
	return s
}
