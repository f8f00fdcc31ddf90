package nodepath

import "strings"

// String serializes the path into its canonical string representation.
func (p Path) String() string {
	var sb strings.Builder
	for i, k := range p {
		if !k.IsIndex() && i > 0 {
			sb.WriteRune('.')
		}
		sb.WriteString(k.String())
	}
	return sb.String()
}

// Equal checks two paths for equality.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether prefix is a leading part of p.
func (p Path) HasPrefix(prefix Path) bool {
	return len(prefix) <= len(p) && p[:len(prefix)].Equal(prefix)
}
