// Package templates embeds the HTML pages and the report layout into the binary.
package templates

import "embed"

//go:embed *.html *.tmpl
var FS embed.FS
