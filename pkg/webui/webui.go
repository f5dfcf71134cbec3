// Package webui provides the embedded single page UI.
package webui

import "embed"

//go:embed static/index.html
var staticFS embed.FS

// IndexHTML returns the UI page.
func IndexHTML() []byte {
	b, err := staticFS.ReadFile("static/index.html")
	if err != nil {
		// The path is fixed by the embed directive above.
		panic(err)
	}
	return b
}
