package report

import (
	"bytes"
	"fmt"
	"html/template"
	"sort"
	"strings"
	"time"

	"github.com/seenimoa/moodpulse/pkg/models"
	"github.com/seenimoa/moodpulse/pkg/utils"
)

// ════════════════════════════════════════════════════════════════════
// Digest configuration
// ════════════════════════════════════════════════════════════════════

// Format specifies the output format.
type Format string

const (
	FormatHTML Format = "html"
	FormatText Format = "text"
)

// Config controls digest generation.
type Config struct {
	Title    string           // custom title (optional)
	Lang     string           // translation to show (default: "en")
	ChartCfg ChartConfig      // chart rendering config
	Now      func() time.Time // defaults to time.Now
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Title:    "moodpulse — Mood Digest",
		Lang:     "en",
		ChartCfg: DefaultChartConfig(),
		Now:      time.Now,
	}
}

// ════════════════════════════════════════════════════════════════════
// Digest data, flattened for template rendering
// ════════════════════════════════════════════════════════════════════

// Entity row statuses.
const (
	RowUpdated = "updated" // refreshed by the last run
	RowStale   = "stale"   // last run failed, previous record kept
	RowMissing = "missing" // last run failed and there is no record
	RowUnknown = ""        // no run report available
)

// Data is the template model passed to the HTML template.
type Data struct {
	Title       string
	GeneratedAt string // KST formatted
	Lang        string

	// Last run
	HasRun   bool
	Slot     string
	Duration string
	Updated  int
	Failed   int
	Failures []FailureRow

	Entities []EntityRow
	Moods    []MoodCount

	// Charts (embedded SVG strings)
	IntensityChart template.HTML
	MoodChart      template.HTML
}

// EntityRow is one entity's record as shown in the digest.
type EntityRow struct {
	ID        string
	Name      string
	Mood      models.Mood
	Color     string
	Intensity int
	TopicWord string
	SubTopics []string
	Reason    string
	UpdatedAt string
	Status    string
}

// FailureRow is one failed entity from the last run.
type FailureRow struct {
	EntityID string
	Stage    string
	Error    string
}

// MoodCount is how many entities currently share a mood.
type MoodCount struct {
	Mood  models.Mood
	Count int
}

// ════════════════════════════════════════════════════════════════════
// Generate
// ════════════════════════════════════════════════════════════════════

// GenerateHTML renders the digest for st and the optional last run as a
// self-contained HTML page.
func GenerateHTML(st models.Store, run *models.RunReport, cfg Config) (string, error) {
	data := Build(st, run, cfg)

	tmpl, err := template.New("digest").Funcs(template.FuncMap{
		"join": strings.Join,
	}).Parse(DigestTemplate)
	if err != nil {
		return "", fmt.Errorf("parsing template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("executing template: %w", err)
	}
	return buf.String(), nil
}

// GenerateText renders the digest for terminals.
func GenerateText(st models.Store, run *models.RunReport, cfg Config) string {
	return renderText(Build(st, run, cfg))
}

// Build flattens the store and run report into template data. Rows are
// ordered by entity id.
func Build(st models.Store, run *models.RunReport, cfg Config) Data {
	def := DefaultConfig()
	if cfg.Title == "" {
		cfg.Title = def.Title
	}
	if cfg.Lang == "" {
		cfg.Lang = def.Lang
	}
	if cfg.Now == nil {
		cfg.Now = def.Now
	}
	if cfg.ChartCfg.Width == 0 {
		cfg.ChartCfg = def.ChartCfg
	}

	data := Data{
		Title:       cfg.Title,
		GeneratedAt: utils.FormatDateTimeKST(cfg.Now()),
		Lang:        cfg.Lang,
	}

	statuses := map[string]models.EntityStatus{}
	if run != nil {
		data.HasRun = true
		data.Slot = run.Slot
		data.Duration = FormatDuration(run.FinishedAt.Sub(run.StartedAt))
		data.Updated = run.Updated()
		data.Failed = run.Failed()
		for _, res := range run.Results {
			statuses[res.EntityID] = res.Status
			if res.Status == models.StatusFailed {
				data.Failures = append(data.Failures, FailureRow{EntityID: res.EntityID, Stage: res.Stage, Error: res.Error})
			}
		}
	}

	ids := st.Keys()
	sort.Strings(ids)
	counts := map[models.Mood]int{}
	for _, id := range ids {
		row := entityRow(st[id], cfg.Lang)
		switch status, ok := statuses[id]; {
		case !ok:
			row.Status = RowUnknown
		case status == models.StatusFailed:
			row.Status = RowStale
		default:
			row.Status = RowUpdated
		}
		data.Entities = append(data.Entities, row)
		counts[row.Mood]++
	}
	for _, f := range data.Failures {
		if _, ok := st[f.EntityID]; !ok {
			data.Entities = append(data.Entities, EntityRow{ID: f.EntityID, Name: f.EntityID, Status: RowMissing})
		}
	}

	for _, m := range models.Moods {
		if counts[m] > 0 {
			data.Moods = append(data.Moods, MoodCount{Mood: m, Count: counts[m]})
		}
	}

	var charted []EntityRow
	for _, r := range data.Entities {
		if r.Status != RowMissing {
			charted = append(charted, r)
		}
	}
	data.IntensityChart = template.HTML(IntensityChart(charted, cfg.ChartCfg))
	moodCfg := cfg.ChartCfg
	moodCfg.Height = 0
	data.MoodChart = template.HTML(MoodDistributionChart(data.Moods, moodCfg))
	return data
}

// entityRow picks the lang translation, falling back to the top-level
// (English) fields.
func entityRow(rec models.AnalysisRecord, lang string) EntityRow {
	row := EntityRow{
		ID:        rec.EntityID,
		Name:      rec.EntityID,
		Mood:      rec.Mood,
		Color:     rec.Color,
		Intensity: rec.Intensity,
		TopicWord: rec.TopicWord,
		SubTopics: rec.SubTopics,
		Reason:    rec.Reason,
		UpdatedAt: rec.UpdatedAt,
	}
	if en, ok := rec.Translations["en"]; ok && en.DisplayNameLocalized != "" {
		row.Name = en.DisplayNameLocalized
	}
	if tr, ok := rec.Translations[lang]; ok {
		if tr.DisplayNameLocalized != "" {
			row.Name = tr.DisplayNameLocalized
		}
		if tr.TopicWord != "" {
			row.TopicWord = tr.TopicWord
		}
		if len(tr.SubTopics) > 0 {
			row.SubTopics = tr.SubTopics
		}
		if tr.Reason != "" {
			row.Reason = tr.Reason
		}
	}
	return row
}

// ════════════════════════════════════════════════════════════════════
// Plain-text renderer
// ════════════════════════════════════════════════════════════════════

func renderText(d Data) string {
	var sb strings.Builder
	line := strings.Repeat("═", 60)
	thinLine := strings.Repeat("─", 60)

	sb.WriteString("\n" + line + "\n")
	sb.WriteString(fmt.Sprintf("  %s\n", d.Title))
	sb.WriteString(fmt.Sprintf("  Generated: %s | Language: %s\n", d.GeneratedAt, d.Lang))
	sb.WriteString(line + "\n")

	if d.HasRun {
		sb.WriteString(fmt.Sprintf("  Last run: slot %s, %d updated, %d failed, took %s\n", d.Slot, d.Updated, d.Failed, d.Duration))
		for _, f := range d.Failures {
			sb.WriteString(fmt.Sprintf("    ✗ %s at %s: %s\n", f.EntityID, f.Stage, f.Error))
		}
		sb.WriteString(thinLine + "\n")
	}

	if len(d.Moods) > 0 {
		parts := make([]string, len(d.Moods))
		for i, m := range d.Moods {
			parts[i] = fmt.Sprintf("%s %d", m.Mood, m.Count)
		}
		sb.WriteString("  Moods: " + strings.Join(parts, " | ") + "\n")
		sb.WriteString(thinLine + "\n")
	}

	if len(d.Entities) == 0 {
		sb.WriteString("\n  No records yet.\n")
	}
	for _, e := range d.Entities {
		if e.Status == RowMissing {
			sb.WriteString(fmt.Sprintf("\n  ■ %s: no record\n", e.Name))
			continue
		}
		marker := ""
		if e.Status == RowStale {
			marker = " (stale)"
		}
		sb.WriteString(fmt.Sprintf("\n  ■ %s [%s]%s\n", e.Name, e.ID, marker))
		sb.WriteString(fmt.Sprintf("    %s · %d bpm · %s\n", e.Mood, e.Intensity, e.TopicWord))
		if len(e.SubTopics) > 0 {
			sb.WriteString(fmt.Sprintf("    #%s\n", strings.Join(e.SubTopics, " #")))
		}
		sb.WriteString(fmt.Sprintf("    %s\n", e.Reason))
	}

	sb.WriteString("\n" + line + "\n")
	return sb.String()
}

// FormatDuration formats a duration for display.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%.1fm", d.Minutes())
	}
	return fmt.Sprintf("%.1fh", d.Hours())
}
