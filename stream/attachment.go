// ABOUTME: Detects file-save notices embedded in act/tool step content and classifies the artifact.
// ABOUTME: The "Content successfully saved to <path>" phrase is part of the wire contract and matched case-sensitively.

package stream

import (
	"net/url"
	"path"
	"strings"
)

// savedMarker is the literal phrase the agent backend emits when a tool
// writes a file. The match is case-sensitive; changing it breaks the
// contract with the backend.
const savedMarker = "Content successfully saved to "

// AttachmentKind selects the rendering affordance for a saved artifact.
type AttachmentKind string

const (
	AttachmentImage   AttachmentKind = "image"
	AttachmentAudio   AttachmentKind = "audio"
	AttachmentVideo   AttachmentKind = "video"
	AttachmentCode    AttachmentKind = "code"
	AttachmentArchive AttachmentKind = "archive"
	AttachmentGeneric AttachmentKind = "generic"
)

// Attachment is a downloadable artifact referenced by a step.
type Attachment struct {
	Path string
	Kind AttachmentKind
}

// DownloadPath returns the server download URL path for the artifact.
func (a Attachment) DownloadPath() string {
	return "/download?file_path=" + url.QueryEscape(a.Path)
}

// DetectAttachment scans step content for the file-save notice and returns
// the referenced artifact. The path runs from the end of the marker to the
// end of that line.
func DetectAttachment(content string) (Attachment, bool) {
	i := strings.Index(content, savedMarker)
	if i == -1 {
		return Attachment{}, false
	}
	rest := content[i+len(savedMarker):]
	if nl := strings.IndexByte(rest, '\n'); nl != -1 {
		rest = rest[:nl]
	}
	p := strings.TrimSpace(rest)
	if p == "" {
		return Attachment{}, false
	}
	return Attachment{Path: p, Kind: kindForExt(path.Ext(p))}, true
}

func kindForExt(ext string) AttachmentKind {
	switch strings.ToLower(ext) {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg", ".bmp":
		return AttachmentImage
	case ".mp3", ".wav", ".ogg", ".flac", ".m4a":
		return AttachmentAudio
	case ".mp4", ".webm", ".mov", ".avi":
		return AttachmentVideo
	case ".go", ".py", ".js", ".ts", ".java", ".c", ".cpp", ".h", ".rs", ".rb",
		".sh", ".html", ".css", ".json", ".yaml", ".yml", ".toml", ".sql", ".md", ".txt":
		return AttachmentCode
	case ".zip", ".tar", ".gz", ".tgz", ".bz2", ".7z":
		return AttachmentArchive
	default:
		return AttachmentGeneric
	}
}
