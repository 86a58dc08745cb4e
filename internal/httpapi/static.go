package httpapi

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"strings"
)

const (
	hardcodedServerURL = "const SERVER_URL = 'http://192.168.1.116:5000';"
	originServerURL    = "const SERVER_URL = window.location.origin;"
)

// webInterface serves the chat page at path, pointing its API base URL at
// whatever origin served the page. The file is read per request so edits show
// up without a restart.
func webInterface(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if path == "" {
			http.Error(w, "Web interface file not found", http.StatusNotFound)
			return
		}
		b, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				http.Error(w, "Web interface file not found", http.StatusNotFound)
				return
			}
			http.Error(w, "failed to read web interface", http.StatusInternalServerError)
			return
		}
		page := strings.ReplaceAll(string(b), hardcodedServerURL, originServerURL)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(page))
	}
}
