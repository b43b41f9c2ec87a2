package objectclient

import (
	"path"
	"strings"
)

// SanitizeMetadata filters metadata values down to the character set object
// stores accept on the wire (printable ASCII, no control characters). S3 in
// particular rejects uploads carrying non-ASCII user metadata headers, so
// this runs before every upload rather than failing the whole pipeline on
// one odd vendor name.
func SanitizeMetadata(metadata map[string]string) map[string]string {
	if len(metadata) == 0 {
		return map[string]string{}
	}
	out := make(map[string]string, len(metadata))
	for k, v := range metadata {
		out[k] = sanitizeValue(v)
	}
	return out
}

func sanitizeValue(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= 0x20 && r < 0x7f {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return strings.TrimSpace(b.String())
}

// ObjectKey builds the category-partitioned blob name for a document.
func ObjectKey(category, docID, filename string) string {
	filename = strings.TrimSpace(filename)
	filename = strings.ReplaceAll(filename, " ", "_")
	return path.Join("documents", category, docID, filename)
}
