package report

// sharedHTML holds the stylesheet and the per-run summary used by both pages.
const sharedHTML = `{{define "style"}}<style>
  :root {
    --bg: #f8f9fa; --card: #ffffff; --fg: #212529; --muted: #6c757d;
    --border: #dee2e6; --pass-bg: #d1e7dd; --pass: #0f5132;
    --fail-bg: #f8d7da; --fail: #842029; --accent: #0d6efd; --expected: #198754;
  }
  * { box-sizing: border-box; }
  body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
    background: var(--bg); color: var(--fg); line-height: 1.5; margin: 0; padding: 20px; }
  .container { max-width: 1400px; margin: 0 auto; }
  h1 { margin: 0 0 0.25rem; }
  h2 { margin: 2rem 0 1rem; border-bottom: 1px solid var(--border); padding-bottom: 0.5rem; }
  h3 { margin: 0 0 0.75rem; }
  .meta { color: var(--muted); font-size: 0.875rem; margin-bottom: 1.5rem; }
  .card { background: var(--card); border: 1px solid var(--border); border-radius: 8px;
    padding: 1rem 1.25rem; margin-bottom: 1rem; }
  .metrics { display: grid; grid-template-columns: repeat(auto-fit, minmax(160px, 1fr)); gap: 0.75rem; }
  .metric { text-align: center; border: 1px solid var(--border); border-radius: 6px; padding: 0.75rem; }
  .metric-label { font-size: 0.75rem; color: var(--muted); text-transform: uppercase; letter-spacing: 0.05em; }
  .metric-value { font-size: 1.5rem; font-weight: 700; color: var(--accent); font-family: 'SF Mono', monospace; }
  .config { display: grid; grid-template-columns: max-content 1fr; gap: 0.25rem 1rem; font-size: 0.875rem; }
  .config dt { color: var(--muted); }
  .config dd { margin: 0; font-family: 'SF Mono', monospace; }
  .warning { background: #fff3cd; border-color: #ffecb5; color: #664d03; }
  .badge { display: inline-block; padding: 0.1rem 0.5rem; border-radius: 4px; font-size: 0.75rem; margin-right: 0.25rem; }
  .pass { background: var(--pass-bg); color: var(--pass); }
  .fail { background: var(--fail-bg); color: var(--fail); }
  .query-label { font-size: 0.75rem; color: var(--muted); text-transform: uppercase; }
  .query-text { margin-bottom: 0.5rem; }
  .columns { display: grid; grid-template-columns: repeat(auto-fit, minmax(400px, 1fr)); gap: 1rem; margin-top: 0.75rem; }
  .doc { border: 1px solid var(--border); border-radius: 6px; padding: 0.5rem 0.75rem; margin-bottom: 0.5rem; font-size: 0.875rem; }
  .doc.expected { border: 2px solid var(--expected); background: #e8f5e9; }
  .doc-id { font-family: 'SF Mono', monospace; font-size: 0.75rem; color: var(--muted); }
  .error { color: var(--fail); font-family: 'SF Mono', monospace; font-size: 0.875rem; }
  details summary { cursor: pointer; color: var(--accent); }
  table { border-collapse: collapse; width: 100%; background: var(--card); }
  th, td { padding: 0.5rem 0.75rem; text-align: left; border: 1px solid var(--border); font-size: 0.875rem; }
  th { background: var(--bg); font-size: 0.75rem; text-transform: uppercase; letter-spacing: 0.05em; color: var(--muted); }
  td.num { font-family: 'SF Mono', monospace; }
  td.best { font-weight: 700; color: var(--expected); }
  .bar { height: 6px; background: var(--accent); border-radius: 3px; margin-top: 2px; }
</style>{{end}}

{{define "summary"}}
<div class="card">
  <h3>Metrics</h3>
  <div class="metrics">
  {{$m := .Record.Results.Metrics}}
  {{range ks}}
    <div class="metric">
      <div class="metric-label">{{recallKey .}}</div>
      <div class="metric-value">{{f4 (metric $m .)}}</div>
    </div>
  {{end}}
  </div>
</div>
<div class="card">
  <h3>Configuration</h3>
  {{with .Record.Results.Config}}
  <dl class="config">
    <dt>embed_method</dt><dd>{{.EmbedMethod}}</dd>
    <dt>rewrite_method</dt><dd>{{orNone .RewriteMethod}}</dd>
    <dt>rerank_method</dt><dd>{{orNone .RerankMethod}}</dd>
    <dt>collection</dt><dd>{{.Collection}}</dd>
    <dt>data_dir</dt><dd>{{.DataDir}}</dd>
  </dl>
  {{end}}
</div>
{{with .Record.Results.Degraded}}
<div class="card warning">
  Embedding provider failures were replaced with zero vectors:
  {{.Chunks}} chunks, {{len .Queries}} queries. Recall is not comparable with clean runs.
</div>
{{end}}
{{end}}`

const runHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Run {{.Run.Record.Results.RunID}}</title>
{{template "style"}}
</head>
<body>
<div class="container">
{{with .Run.Record.Results}}
<h1>Run {{.RunID}}</h1>
{{end}}
<p class="meta">Generated {{.GeneratedAt.Format "2006-01-02 15:04:05 MST"}}</p>
{{template "summary" .Run}}

<h2>Queries</h2>
{{range .Run.Queries}}
<div class="card">
  <div class="query-label">{{.ID}} &middot; original query</div>
  <div class="query-text">{{.OriginalQuery}}</div>
  {{if .RewrittenQuery}}
  <div class="query-label">Rewritten query</div>
  <div class="query-text">{{deref .RewrittenQuery}}</div>
  {{end}}
  <div>
  {{$recall := .Recall}}
  {{range ks}}{{$key := recallKey .}}{{with index $recall $key}}<span class="badge pass">{{$key}}: Pass</span>{{else}}<span class="badge fail">{{$key}}: Fail</span>{{end}}{{end}}
  {{if .DegradedQueryEmbedding}}<span class="badge fail">zero-vector query embedding</span>{{end}}
  </div>
  {{if .RerankError}}<p class="error">Rerank failed: {{.RerankError}}</p>{{end}}
  <details>
    <summary>Show results (expected {{.ExpectedDocID}})</summary>
    <div class="columns">
      {{$expected := .ExpectedDocID}}
      <div>
        <h3>Retrieved</h3>
        {{range $i, $doc := .RetrievedResults}}
        <div class="doc{{if eq $doc.DocID $expected}} expected{{end}}">
          <div class="doc-id">#{{inc $i}} {{$doc.DocID}}</div>
          <div>{{$doc.Content}}</div>
        </div>
        {{end}}
      </div>
      {{if .RerankedResults}}
      <div>
        <h3>Reranked</h3>
        {{range $i, $doc := .RerankedResults}}
        <div class="doc{{if eq $doc.DocID $expected}} expected{{end}}">
          <div class="doc-id">#{{inc $i}} {{$doc.DocID}}</div>
          <div>{{$doc.Content}}</div>
        </div>
        {{end}}
      </div>
      {{end}}
    </div>
  </details>
</div>
{{end}}
</div>
</body>
</html>`

const sweepHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Sweep results</title>
{{template "style"}}
</head>
<body>
<div class="container">
<h1>Sweep results</h1>
<p class="meta">{{len .Runs}} runs from {{.Dir}} &middot; generated {{.GeneratedAt.Format "2006-01-02 15:04:05 MST"}}</p>

<h2>Overview</h2>
<table>
  <thead>
    <tr><th>Run</th><th>Embed</th><th>Rewrite</th><th>Rerank</th>{{range ks}}<th>{{recallKey .}}</th>{{end}}</tr>
  </thead>
  <tbody>
  {{$best := .Best}}
  {{range .Runs}}
    {{$m := .Record.Results.Metrics}}
    <tr>
      <td><a href="#{{.Record.Results.RunID}}">{{.Record.Results.RunID}}</a></td>
      {{with .Record.Results.Config}}
      <td>{{.EmbedMethod}}</td><td>{{orNone .RewriteMethod}}</td><td>{{orNone .RerankMethod}}</td>
      {{end}}
      {{range ks}}
      <td class="num{{if isBest $best $m .}} best{{end}}">{{pct (metric $m .)}}<div class="bar" style="width: {{barWidth (metric $m .)}}%"></div></td>
      {{end}}
    </tr>
  {{end}}
  </tbody>
</table>

<h2>Runs</h2>
{{range .Runs}}
<section id="{{.Record.Results.RunID}}">
  <h3>{{.Record.Results.RunID}} <span class="meta">{{.File}}</span></h3>
  {{template "summary" .}}
  <div class="card">
    {{$run := .}}
    {{range ks}}<span class="badge fail">{{recallKey .}} misses: {{$run.Failed .}}</span>{{end}}
  </div>
</section>
{{end}}
</div>
</body>
</html>`
