package assets

import (
	"embed"
	"io/fs"
)

//go:embed faces.txt sql/*.sql
var FS embed.FS

// Faces opens the embedded default tile faces (one per line).
func Faces() (fs.File, error) {
	return FS.Open("faces.txt")
}

// Migrations returns the embedded sql/ directory.
func Migrations() fs.FS {
	sub, err := fs.Sub(FS, "sql")
	if err != nil {
		panic(err) // sql/ is embedded at build time
	}
	return sub
}
