// Package fs embeds the portal templates.
package fs

import (
	"embed"
	iofs "io/fs"
)

//go:embed templates
var files embed.FS

const (
	LayoutsGlob = "layouts/*.html"
	PagesDir    = "pages"
)

// Templates is the template tree rooted at templates/.
func Templates() iofs.FS {
	sub, err := iofs.Sub(files, "templates")
	if err != nil {
		panic(err) // the directory is embedded at build time
	}
	return sub
}
