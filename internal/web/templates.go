package web

// formStyles extends the report stylesheet with the step indicator and form controls.
const formStyles = `
.steps { display: flex; justify-content: space-between; margin-bottom: 30px; }
.step { flex: 1; text-align: center; padding: 15px; background: #f0f0f0; margin: 0 5px; border-radius: 5px; font-weight: 600; color: #999; }
.step.active { background: #2a5298; color: white; }
.step.completed { background: #28a745; color: white; }
.form-group { margin-bottom: 20px; }
label { display: block; margin-bottom: 8px; color: #333; font-weight: 600; }
input[type="text"], input[type="number"], select, textarea { width: 100%; padding: 12px; border: 2px solid #ddd; border-radius: 5px; font-size: 14px; }
textarea { min-height: 100px; font-family: monospace; }
button { background: #2a5298; color: white; padding: 12px 30px; border: none; border-radius: 5px; cursor: pointer; font-size: 16px; font-weight: 600; }
button:hover { background: #1e3c72; }
.error { background: #f8d7da; border-left: 4px solid #dc3545; color: #721c24; padding: 15px; margin-bottom: 20px; border-radius: 4px; }
.files-grid { display: grid; grid-template-columns: repeat(auto-fill, minmax(300px, 1fr)); gap: 10px; max-height: 400px; overflow-y: auto; padding: 10px; border: 1px solid #ddd; border-radius: 5px; margin-bottom: 20px; }
.file-item { display: flex; align-items: center; padding: 8px; background: #f8f9fa; border-radius: 4px; word-break: break-all; }
.file-item input { margin-right: 10px; }
.file-item label { margin: 0; font-weight: normal; }
`

const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Website Crawler &amp; Parameter Fuzzer</title>
<style>{{styles}}{{formStyles}}</style>
</head>
<body>
<div class="container">
<h1>Website Crawler &amp; Parameter Fuzzer</h1>
<p class="subtitle">Discover files and fuzz for hidden parameters</p>

<div class="steps">
	<div class="step {{stepClass .Step 1}}">1. Crawl Website</div>
	<div class="step {{stepClass .Step 2}}">2. Select Files</div>
	<div class="step {{stepClass .Step 3}}">3. View Results</div>
</div>

{{with .Error}}<div class="error">{{.}}</div>{{end}}

{{if eq .Step 1}}
<form method="post" action="/">
	<input type="hidden" name="step" value="1">
	<div class="form-group">
		<label for="url">Target URL:</label>
		<input type="text" id="url" name="url" placeholder="https://example.com" value="{{.Form.URL}}" required>
	</div>
	<div class="form-group">
		<label for="max_depth">Maximum Crawl Depth:</label>
		<input type="number" id="max_depth" name="max_depth" value="{{.Form.MaxDepth}}" min="1" max="{{.Form.DepthCap}}">
	</div>
	<div class="form-group">
		<label for="max_urls">Maximum URLs to Crawl:</label>
		<input type="number" id="max_urls" name="max_urls" value="{{.Form.MaxURLs}}" min="1" max="{{.Form.URLsCap}}">
	</div>
	<button type="submit">Start Crawling</button>
</form>
{{else if eq .Step 2}}
<div class="info-box">
	<strong>Crawl Complete!</strong>{{if .Crawl.Cancelled}} (interrupted){{end}}<br>
	Target: {{.Crawl.Target}}<br>
	URLs Visited: {{len .Crawl.Visited}}<br>
	Files Discovered: {{len .Crawl.Pages}}
</div>
{{if .Crawl.Pages}}
<form method="post" action="/">
	<input type="hidden" name="step" value="2">
	<input type="hidden" name="run_id" value="{{.RunID}}">
	<input type="hidden" name="target" value="{{.Crawl.Target}}">
	{{if .Crawl.Cancelled}}<input type="hidden" name="cancelled" value="true">{{end}}
	{{range .Crawl.Visited}}<input type="hidden" name="visited[]" value="{{.}}">
	{{end}}
	{{range .Crawl.Pages}}<input type="hidden" name="discovered[]" value="{{.URL}}">
	{{end}}
	<h2>Select Files to Fuzz</h2>
	<div class="files-grid">
		{{range $i, $p := .Crawl.Pages}}
		<div class="file-item">
			<input type="checkbox" id="file_{{$i}}" name="selected_files[]" value="{{$p.URL}}"{{if index $.Selected $p.URL}} checked{{end}}>
			<label for="file_{{$i}}">{{$p.Path}}{{with $p.Extension}} <span class="badge badge-info">.{{.}}</span>{{end}}</label>
		</div>
		{{end}}
	</div>
	<div class="form-group">
		<label for="method">HTTP Method:</label>
		<select id="method" name="method">
			{{range .Methods}}<option value="{{.}}"{{if eq . $.Method}} selected{{end}}>{{.}}</option>{{end}}
		</select>
	</div>
	<div class="form-group">
		<label for="custom_params">Custom Parameters (one per line, leave empty for defaults):</label>
		<textarea id="custom_params" name="custom_params" placeholder="id&#10;user&#10;debug">{{.CustomParams}}</textarea>
	</div>
	<button type="submit">Start Fuzzing</button>
</form>
{{else}}
<div class="no-results">No files were discovered. Check the target URL and crawl limits.</div>
<form method="get" action="/" style="margin-top: 20px;">
	<button type="submit">Start New Scan</button>
</form>
{{end}}
{{else}}
{{template "report" .Report}}
<form method="get" action="/" style="margin-top: 20px;">
	<button type="submit">Start New Scan</button>
</form>
{{end}}
</div>
</body>
</html>
`
