// ABOUTME: Workspace abstraction over the agent's output directory.
// ABOUTME: Resolves requested download paths and confines them to the workspace root.
package web

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Workspace is the directory the agent writes its artifacts into. Download
// requests reference files inside it, either by absolute path or relative to
// the root.
type Workspace struct {
	Root string
}

// NewWorkspace creates a workspace rooted at the given directory.
func NewWorkspace(root string) Workspace {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}
	return Workspace{Root: abs}
}

// ErrOutsideWorkspace marks a resolved path escaping the workspace root.
type ErrOutsideWorkspace struct {
	Path string
}

func (e *ErrOutsideWorkspace) Error() string {
	return fmt.Sprintf("path %q is outside the workspace", e.Path)
}

// Resolve turns a requested file path into an absolute path under the
// workspace root. Relative paths are joined to the root; absolute paths must
// already be inside it. Traversal out of the root is rejected regardless of
// how the request spells it.
func (w Workspace) Resolve(requested string) (string, error) {
	if requested == "" {
		return "", fmt.Errorf("empty path")
	}

	p := requested
	if !filepath.IsAbs(p) {
		p = filepath.Join(w.Root, p)
	}
	p = filepath.Clean(p)

	rel, err := filepath.Rel(w.Root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", &ErrOutsideWorkspace{Path: requested}
	}
	return p, nil
}
