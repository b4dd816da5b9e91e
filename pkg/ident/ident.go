// Package ident defines scoped identifier paths shared by lifetimes, predicates and frames.
package ident

import (
	"strings"

	"github.com/cespare/xxhash/v2"
)

const sep = "/"

// Path is a scoped identifier such as "main/$if0T/u". The zero value is the empty path.
type Path string

func New(segments ...string) Path { return Path("").Append(segments...) }

func (p Path) Append(segments ...string) Path {
	parts := p.Segments()
	for _, s := range segments {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return Path(strings.Join(parts, sep))
}

// Join appends every segment of other to p.
func (p Path) Join(other Path) Path { return p.Append(other.Segments()...) }

func (p Path) Pop() Path {
	if i := strings.LastIndex(string(p), sep); i >= 0 {
		return p[:i]
	}
	return ""
}

func (p Path) Last() string {
	if i := strings.LastIndex(string(p), sep); i >= 0 {
		return string(p[i+1:])
	}
	return string(p)
}

func (p Path) Segments() []string {
	if p == "" {
		return nil
	}
	return strings.Split(string(p), sep)
}

func (p Path) IsEmpty() bool { return p == "" }

// HasPrefix reports whether scope is p itself or one of its enclosing scopes.
func (p Path) HasPrefix(scope Path) bool {
	if scope == "" || p == scope {
		return true
	}
	return strings.HasPrefix(string(p), string(scope)+sep)
}

func (p Path) String() string { return string(p) }

// Hasher hashes paths for the persistent maps used by type frames.
type Hasher struct{}

func (Hasher) Hash(p Path) uint32   { return uint32(xxhash.Sum64String(string(p))) }
func (Hasher) Equal(a, b Path) bool { return a == b }
