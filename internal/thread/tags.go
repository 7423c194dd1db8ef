package thread

import (
	"encoding/json"
	"strings"

	"github.com/steemit/sdgforum/internal/apperr"
)

// Tag limits
const (
	MaxTags      = 10
	MaxTagLength = 32
)

// NormalizeTags trims tags, strips a leading '#', lower-cases them and
// removes duplicates keeping first occurrence order
func NormalizeTags(raw []string) ([]string, error) {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))

	for _, tag := range raw {
		tag = strings.ToLower(strings.TrimLeft(strings.TrimSpace(tag), "#"))
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if len([]rune(tag)) > MaxTagLength {
			return nil, apperr.Validation("tag %q exceeds %d characters", tag, MaxTagLength)
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}

	if len(out) > MaxTags {
		return nil, apperr.Validation("at most %d tags are allowed", MaxTags)
	}
	return out, nil
}

// TagList decodes either a JSON array of strings or a comma-separated string
type TagList []string

// UnmarshalJSON implements json.Unmarshaler
func (l *TagList) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*l = nil
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*l = list
		return nil
	}

	var joined string
	if err := json.Unmarshal(data, &joined); err != nil {
		return apperr.Validation("tags must be an array or comma-separated string")
	}
	*l = SplitList(joined)
	return nil
}

// SplitList splits a comma-separated string and drops blank items
func SplitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
