package web

import "html/template"

var pages = template.Must(template.New("pages").Parse(`
{{define "head"}}<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Certificate Generator</title>
<style>
body { font-family: sans-serif; max-width: 48em; margin: 2em auto; }
form { margin-bottom: 1.5em; }
.error { color: #a00; }
</style>
</head>
<body>
<h1>Certificate Generator</h1>
{{end}}

{{define "index"}}{{template "head"}}
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
{{if .Identity}}
<p>Signed in as {{.Identity}}.</p>
<form method="post" action="/logout"><button>Sign out</button></form>

<h2>1. Check the roster</h2>
<form method="post" action="/preview" enctype="multipart/form-data" target="_blank">
<input type="file" name="roster" accept=".xlsx,.xls" required>
<button>Preview</button>
</form>

<h2>2. Generate certificates</h2>
<form method="post" action="/certificates" enctype="multipart/form-data">
<input type="file" name="roster" accept=".xlsx,.xls" required>
<button>Download certificates.zip</button>
</form>

<p><a href="/roster-template">Blank roster workbook</a></p>
{{else}}
<h2>Sign in</h2>
<form method="post" action="/login">
<p><label>Email <input type="email" name="email" required placeholder="you{{.Domain}}"></label></p>
<p><label>Passphrase <input type="password" name="passphrase" required></label></p>
<button>Sign in</button>
</form>
{{end}}
</body>
</html>
{{end}}

{{define "preview"}}{{template "head"}}
<h2>{{.File}}</h2>
<p>{{.Summary.Appeared}} students, {{.Summary.Qualified}} qualified, {{.Summary.NotQualified}} not qualified.</p>
{{.Table}}
</body>
</html>
{{end}}
`))
