package server

import (
	"html/template"
	"net/http"

	"github.com/KaramelBytes/flowloom-cli/internal/logger"
	"github.com/KaramelBytes/flowloom-cli/internal/render"
)

type indexPage struct {
	Script    string
	RootLabel string
	Narrative bool
	MaxMB     int64
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>flowloom</title>
<script src="{{.Script}}"></script>
<style>
body{font-family:sans-serif;margin:2rem;max-width:1100px}
fieldset{margin-bottom:1rem}
label{display:block;margin:.3rem 0}
#chart{width:100%;height:600px}
#error{color:#b00020}
pre{white-space:pre-wrap;background:#f6f6f6;padding:1rem}
</style>
</head>
<body>
<h1>Flow Graph Builder</h1>
<form id="form">
<fieldset>
<legend>Dataset (CSV, TSV or XLSX, up to {{.MaxMB}} MB)</legend>
<input type="file" name="file" id="file" accept=".csv,.tsv,.tab,.txt,.xlsx" required>
<label>Sheet name (XLSX) <input type="text" name="sheet_name"></label>
</fieldset>
<fieldset id="selection" hidden>
<legend>Columns</legend>
<label><input type="radio" name="mode" value="single-split" checked> Single split (category and measure)</label>
<label><input type="radio" name="mode" value="multi-stage"> Multi-stage (two or more stage columns)</label>
<div id="split">
<label>Category <select name="category" id="category"></select></label>
<label>Measure <select name="measure" id="measure"></select></label>
<label>Root label <input type="text" name="root_label" value="{{.RootLabel}}"></label>
</div>
<div id="stages" hidden>
<label>Stages, in order <select name="stages" id="stageList" multiple size="6"></select></label>
</div>
<button type="button" id="build">Build chart</button>
<button type="button" id="download">Download HTML</button>
{{if .Narrative}}<select name="kind" id="kind">
<option value="commentary">Commentary</option>
<option value="email">Email</option>
<option value="both">Commentary and email</option>
</select>
<button type="button" id="narrate">Generate narrative</button>{{end}}
</fieldset>
</form>
<p id="error"></p>
<div id="chart"></div>
<pre id="narrative" hidden></pre>
<script>
const form = document.getElementById('form');
const err = document.getElementById('error');
function fail(e) { err.textContent = e; }
async function post(path) {
  err.textContent = '';
  const fd = new FormData(form);
  if (fd.get('mode') === 'single-split') { fd.delete('stages'); } else { fd.delete('category'); fd.delete('measure'); }
  const res = await fetch(path, {method: 'POST', body: fd});
  if (!res.ok) { const body = await res.json().catch(() => ({error: res.statusText})); throw body.error; }
  return res;
}
function fill(sel, cols, numericOnly) {
  sel.innerHTML = '';
  for (const c of cols) {
    if (numericOnly && c.kind !== 'numeric') continue;
    const o = document.createElement('option'); o.value = c.name; o.textContent = c.name + ' (' + c.kind + ')'; sel.appendChild(o);
  }
}
document.getElementById('file').addEventListener('change', async () => {
  try {
    const data = await (await post('/api/columns')).json();
    fill(document.getElementById('category'), data.columns, false);
    fill(document.getElementById('measure'), data.columns, true);
    fill(document.getElementById('stageList'), data.columns, false);
    document.getElementById('selection').hidden = false;
  } catch (e) { fail(e); }
});
for (const r of document.querySelectorAll('input[name=mode]')) {
  r.addEventListener('change', () => {
    const single = form.mode.value === 'single-split';
    document.getElementById('split').hidden = !single;
    document.getElementById('stages').hidden = single;
  });
}
document.getElementById('build').addEventListener('click', async () => {
  try {
    const g = await (await post('/api/flow')).json();
    if (g.edges.length === 0) { document.getElementById('chart').textContent = '(0 links)'; return; }
    document.getElementById('chart').textContent = '';
    Plotly.newPlot('chart', [g.trace], g.layout, {responsive: true});
  } catch (e) { fail(e); }
});
document.getElementById('download').addEventListener('click', async () => {
  try {
    const blob = await (await post('/api/chart')).blob();
    const a = document.createElement('a'); a.href = URL.createObjectURL(blob); a.download = 'sankey.html'; a.click();
  } catch (e) { fail(e); }
});
const narrate = document.getElementById('narrate');
if (narrate) narrate.addEventListener('click', async () => {
  const out = document.getElementById('narrative');
  out.hidden = false; out.textContent = 'Generating...';
  try {
    const n = await (await post('/api/narrative')).json();
    let text = n.commentary ? n.commentary + '\n\n' : '';
    text += n.subject ? 'Subject: ' + n.subject + '\n\n' + n.body : n.content;
    out.textContent = text;
  } catch (e) { out.textContent = ''; fail(e); }
});
</script>
</body>
</html>
`))

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := indexTemplate.Execute(w, indexPage{
		Script:    render.PlotlyCDN,
		RootLabel: s.cfg.RootLabel,
		Narrative: s.cfg.Narrator != nil,
		MaxMB:     s.cfg.MaxUploadBytes >> 20,
	})
	if err != nil {
		logger.Error("render index", "err", err)
	}
}
