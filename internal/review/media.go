package review

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
)

// maxMediaBytes caps the size of an image attached as visual context
const maxMediaBytes = 5 << 20

var imageMimeByExt = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
}

// MediaResolver turns stored media references into inline data URLs
type MediaResolver struct {
	root string
}

// NewMediaResolver creates a resolver for media stored under root
func NewMediaResolver(root string) *MediaResolver {
	return &MediaResolver{root: root}
}

// DataURL returns a data URL for ref, or "" when ref cannot be resolved to
// a readable image under the media root. Unresolvable media is omitted
// from review rather than failing it.
func (m *MediaResolver) DataURL(ref string) string {
	if m == nil || strings.TrimSpace(ref) == "" {
		return ""
	}

	path, ok := m.localPath(ref)
	if !ok {
		return ""
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	mime, ok := imageMimeByExt[ext]
	if !ok {
		return ""
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() || info.Size() > maxMediaBytes {
		return ""
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}

	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// localPath maps ref into the media root, refusing paths that escape it
func (m *MediaResolver) localPath(ref string) (string, bool) {
	root, err := filepath.Abs(m.root)
	if err != nil {
		return "", false
	}

	cleaned := filepath.Clean(filepath.FromSlash(ref))
	var candidate string
	if filepath.IsAbs(cleaned) {
		candidate = cleaned
	} else {
		// Stored references may carry the root directory name as a prefix
		rootName := filepath.Base(root)
		cleaned = strings.TrimPrefix(cleaned, rootName+string(filepath.Separator))
		candidate = filepath.Join(root, cleaned)
	}

	rel, err := filepath.Rel(root, candidate)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return candidate, true
}
