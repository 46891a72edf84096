// Package ui embeds the control page of the web interface.
package ui

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed index.html
var pageFS embed.FS

// Handler returns an http.Handler that serves the control page at "/".
func Handler() (http.Handler, error) {
	if _, err := fs.Stat(pageFS, "index.html"); err != nil {
		return nil, err
	}
	fileServer := http.FileServerFS(pageFS)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")
		fileServer.ServeHTTP(w, r)
	}), nil
}
