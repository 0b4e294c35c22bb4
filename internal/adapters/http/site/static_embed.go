package site

import (
	"embed"
	"io/fs"
)

//go:embed static/index.html
var staticFS embed.FS

// indexPage returns the embedded landing page.
func indexPage() ([]byte, error) {
	return fs.ReadFile(staticFS, "static/index.html")
}
