package handler

import "html/template"

const loginTemplate = "login.html"

type loginPage struct {
	UserID string
	Errors []string
}

const indexPage = `<h1>top page</h1>
<p><a href="/login">login</a></p>
<p><a href="/member">member</a></p>
<p><a href="/logout">logout</a></p>
`

var templates = template.Must(template.New(loginTemplate).Parse(`<!doctype html>
<html>
<head><title>login</title></head>
<body>
<h1>login</h1>
{{if .Errors}}<ul class="errors">
{{range .Errors}}<li>{{.}}</li>
{{end}}</ul>{{end}}
<form method="post" action="/login">
<label>user id <input type="text" name="user_id" value="{{.UserID}}"></label>
<label>password <input type="password" name="password"></label>
<button type="submit">login</button>
</form>
</body>
</html>
`))
