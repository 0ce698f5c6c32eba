// ABOUTME: Download handler serving agent-produced files from the workspace directory.
// ABOUTME: Requested paths are confined to the workspace; traversal attempts are rejected.
package web

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
)

// handleDownload serves one file from the agent workspace. The file is
// identified by the file_path query parameter, matching the URLs embedded in
// step content for saved artifacts.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	requested := r.URL.Query().Get("file_path")
	if requested == "" {
		writeDetail(w, http.StatusBadRequest, "file_path parameter is required")
		return
	}

	resolved, err := s.workspace.Resolve(requested)
	if err != nil {
		var outside *ErrOutsideWorkspace
		if errors.As(err, &outside) {
			s.log.WithField("path", requested).Warn("download outside workspace rejected")
			writeDetail(w, http.StatusForbidden, "Access to this path is not allowed")
			return
		}
		writeDetail(w, http.StatusBadRequest, "Invalid file path")
		return
	}

	info, err := os.Stat(resolved)
	if err != nil || info.IsDir() {
		writeDetail(w, http.StatusNotFound, "File not found")
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(resolved)+`"`)
	http.ServeFile(w, r, resolved)
}
