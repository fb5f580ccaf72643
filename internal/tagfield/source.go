package tagfield

import (
	"strconv"
	"strings"
)

// SourcePrefix marks a field source that points at a tag group.
const SourcePrefix = "taggroup:"

// ParseSource extracts the tag group ID from a field source setting such as
// "taggroup:3". It reports false for anything else, which callers treat as
// an unconfigured field rather than an error.
func ParseSource(source string) (int64, bool) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(source), SourcePrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// FormatSource is the inverse of ParseSource.
func FormatSource(groupID int64) string {
	return SourcePrefix + strconv.FormatInt(groupID, 10)
}
