package frontend

import (
	"embed"
	"io/fs"
)

//go:embed web
var webFS embed.FS

// GetWebFS returns the embedded web assets filesystem
func GetWebFS() (fs.FS, error) {
	return fs.Sub(webFS, "web")
}
