package nodepath

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// segmentRegex parses one dot-separated segment, e.g. `name`, `name[1]`,
// `name[1][2]` or `[1]`.
var segmentRegex = regexp.MustCompile(`^([a-zA-Z0-9_-]*)((?:\[\d+\])*)$`)

var indexRegex = regexp.MustCompile(`\[(\d+)\]`)

// isValidSegmentName checks for undesirable but technically valid names.
func isValidSegmentName(name string) bool {
	return name != "-"
}

// Parse creates a Path from its canonical string representation.
func Parse(raw string) (Path, error) {
	if raw == "" {
		return nil, fmt.Errorf("path cannot be empty")
	}

	var path Path
	for i, segment := range strings.Split(raw, ".") {
		if segment == "" {
			return nil, fmt.Errorf("path contains empty segment")
		}

		matches := segmentRegex.FindStringSubmatch(segment)
		if matches == nil {
			return nil, fmt.Errorf("invalid path segment format: %q", segment)
		}

		name := matches[1]
		if name == "" && (i > 0 || matches[2] == "") {
			return nil, fmt.Errorf("invalid path segment format: %q", segment)
		}
		if name != "" {
			if !isValidSegmentName(name) {
				return nil, fmt.Errorf("invalid segment name: %q", name)
			}
			path = append(path, Name(name))
		}

		for _, idx := range indexRegex.FindAllStringSubmatch(matches[2], -1) {
			index, err := strconv.Atoi(idx[1])
			if err != nil {
				return nil, fmt.Errorf("invalid index in segment %q: %w", segment, err)
			}
			path = append(path, Index(index))
		}
	}

	return path, nil
}
