package report

// DigestTemplate is the HTML template for the mood digest. It is embedded as
// a Go constant so the page has no external file dependencies.
const DigestTemplate = `<!DOCTYPE html>
<html lang="{{.Lang}}">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Title}}</title>
<style>
  :root {
    --bg: #ffffff;
    --text: #1a1a2e;
    --muted: #6b7280;
    --border: #e5e7eb;
    --accent: #2563eb;
    --red: #dc2626;
    --section-bg: #f8fafc;
  }
  * { margin: 0; padding: 0; box-sizing: border-box; }
  body {
    font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
    color: var(--text);
    background: var(--bg);
    line-height: 1.6;
    max-width: 900px;
    margin: 0 auto;
    padding: 20px;
  }
  h1 { font-size: 1.5rem; margin-bottom: 4px; color: var(--accent); }
  h2 { font-size: 1.2rem; margin: 24px 0 12px; padding-bottom: 6px; border-bottom: 2px solid var(--accent); }
  p { margin: 6px 0; }
  .muted { color: var(--muted); font-size: 0.85rem; }

  /* Header */
  .header {
    display: flex;
    justify-content: space-between;
    align-items: flex-start;
    border-bottom: 3px solid var(--accent);
    padding-bottom: 12px;
    margin-bottom: 16px;
  }
  .header-right { text-align: right; }

  /* Run bar */
  .run-bar {
    display: grid;
    grid-template-columns: repeat(auto-fill, minmax(140px, 1fr));
    gap: 8px;
    background: var(--section-bg);
    padding: 12px;
    border-radius: 8px;
    margin-bottom: 16px;
  }
  .run-item { text-align: center; }
  .run-item .label { font-size: 0.75rem; color: var(--muted); text-transform: uppercase; }
  .run-item .value { font-size: 1rem; font-weight: 600; }
  .negative { color: var(--red); }

  /* Entity cards */
  .cards {
    display: grid;
    grid-template-columns: repeat(auto-fill, minmax(260px, 1fr));
    gap: 12px;
  }
  .card {
    background: var(--section-bg);
    border-radius: 8px;
    padding: 12px;
    border-left: 5px solid var(--border);
  }
  .card.stale { opacity: 0.7; }
  .card .name { font-weight: 700; }
  .card .mood { font-weight: 600; }
  .card .topics { color: var(--muted); font-size: 0.85rem; }

  table { width: 100%; border-collapse: collapse; margin: 8px 0 16px; font-size: 0.9rem; }
  th { background: var(--section-bg); text-align: left; padding: 8px; font-weight: 600; }
  td { padding: 8px; border-bottom: 1px solid var(--border); }

  .chart-container { margin: 12px 0; overflow-x: auto; }
  .chart-container svg { max-width: 100%; height: auto; }

  .footer {
    margin-top: 30px;
    padding-top: 12px;
    border-top: 2px solid var(--border);
    font-size: 0.8rem;
    color: var(--muted);
    text-align: center;
  }
</style>
</head>
<body>

<!-- ═══════ HEADER ═══════ -->
<div class="header">
  <div>
    <h1>{{.Title}}</h1>
    <p class="muted">{{len .Entities}} entities</p>
  </div>
  <div class="header-right">
    <p class="muted">{{.GeneratedAt}}</p>
  </div>
</div>

<!-- ═══════ LAST RUN ═══════ -->
{{if .HasRun}}
<div class="run-bar">
  <div class="run-item"><div class="label">Slot</div><div class="value">{{.Slot}}</div></div>
  <div class="run-item"><div class="label">Updated</div><div class="value">{{.Updated}}</div></div>
  <div class="run-item"><div class="label">Failed</div><div class="value{{if .Failed}} negative{{end}}">{{.Failed}}</div></div>
  <div class="run-item"><div class="label">Duration</div><div class="value">{{.Duration}}</div></div>
</div>
{{if .Failures}}
<table>
  <tr><th>Entity</th><th>Stage</th><th>Error</th></tr>
  {{range .Failures}}<tr><td>{{.EntityID}}</td><td>{{.Stage}}</td><td>{{.Error}}</td></tr>
  {{end}}
</table>
{{end}}
{{end}}

<!-- ═══════ ENTITIES ═══════ -->
<h2>Moods</h2>
{{if .Entities}}
<div class="cards">
{{range .Entities}}
  <div class="card {{.Status}}" style="border-left-color: {{.Color}}">
    <div class="name">{{.Name}} <span class="muted">{{.ID}}</span></div>
    {{if eq .Status "missing"}}
    <p class="muted">No record yet.</p>
    {{else}}
    <div class="mood">{{.Mood}} · {{.Intensity}} bpm</div>
    <div>{{.TopicWord}}</div>
    {{if .SubTopics}}<div class="topics">#{{join .SubTopics " #"}}</div>{{end}}
    <p>{{.Reason}}</p>
    <p class="muted">{{.UpdatedAt}}{{if eq .Status "stale"}} · stale{{end}}</p>
    {{end}}
  </div>
{{end}}
</div>
{{else}}
<p class="muted">No records yet.</p>
{{end}}

<!-- ═══════ CHARTS ═══════ -->
{{if .Moods}}
<h2>Overview</h2>
<div class="chart-container">{{.MoodChart}}</div>
<div class="chart-container">{{.IntensityChart}}</div>
{{end}}

<div class="footer">Generated by moodpulse from headline feeds. Moods are model output and may be wrong.</div>
</body>
</html>
`
