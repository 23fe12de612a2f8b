package expr

import (
	"slices"
	"strings"
)

// Path is a dotted sequence of identifiers such as a.b.c. Use String()
// when a Path is needed as a map key.
type Path []string

// ParsePath splits a dotted string into a Path. The empty string is the
// empty Path.
func ParsePath(s string) Path {
	if s == "" {
		return Path{}
	}
	return Path(strings.Split(s, "."))
}

// String joins the path with dots.
func (p Path) String() string {
	return strings.Join(p, ".")
}

// Root returns the first segment, or "" for the empty path.
func (p Path) Root() string {
	if len(p) == 0 {
		return ""
	}
	return p[0]
}

// Parent returns the path without its last segment.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return Path{}
	}
	return slices.Clone(p[:len(p)-1])
}

// Child returns a new path with name appended.
func (p Path) Child(name string) Path {
	out := make(Path, len(p)+1)
	copy(out, p)
	out[len(p)] = name
	return out
}

// Tail returns the path without its root segment.
func (p Path) Tail() Path {
	if len(p) == 0 {
		return Path{}
	}
	return slices.Clone(p[1:])
}

// HasPrefix reports whether prefix is a leading run of p's segments.
func (p Path) HasPrefix(prefix Path) bool {
	return len(prefix) <= len(p) && slices.Equal(p[:len(prefix)], prefix)
}

// Equal reports segment-wise equality.
func (p Path) Equal(other Path) bool {
	return slices.Equal(p, other)
}
