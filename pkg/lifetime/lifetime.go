// Package lifetime tracks how long storage must live. A LifetimeGraph holds the outlives
// obligations region inference must satisfy; a DataFlowGraph records which values were
// assigned, stored or nested into which others so the checker can find aliases.
package lifetime

import (
	"fmt"
	"slices"
	"strings"

	"github.com/helixlang/helix/pkg/ident"
)

// Origin says where a lifetime's storage comes from.
type Origin int

const (
	// Local is fixed frame storage, such as the slot of a parameter.
	Local Origin = iota
	// Parameter is a region supplied by the caller.
	Parameter
	Heap
	// Return is the region the caller receives the function result in.
	Return
	// Temp is an intermediate value that never gets its own region.
	Temp
	// Inferred storage is placed later by region inference.
	Inferred
)

var originNames = [...]string{"local", "param", "heap", "return", "temp", "inferred"}

func (o Origin) String() string {
	if int(o) < len(originNames) {
		return originNames[o]
	}
	return fmt.Sprintf("origin(%d)", int(o))
}

// Lifetime identifies one version of the storage behind a path. The zero value is None.
type Lifetime struct {
	Path    ident.Path
	Origin  Origin
	Version int
}

var (
	None         = Lifetime{}
	HeapLifetime = Lifetime{Path: ident.New("$heap"), Origin: Heap}
)

func New(path ident.Path, origin Origin) Lifetime { return Lifetime{Path: path, Origin: origin} }

func (l Lifetime) IsNone() bool { return l == None }

// Bump re-mints the lifetime after its variable is reassigned.
func (l Lifetime) Bump() Lifetime {
	l.Version++
	return l
}

// IsRoot reports whether the lifetime is backed by a region that exists at runtime.
func (l Lifetime) IsRoot() bool { return l.Origin != Inferred && l.Origin != Temp }

func (l Lifetime) Key() string { return fmt.Sprintf("%s#%d:%s", l.Path, l.Version, l.Origin) }

func (l Lifetime) String() string {
	if l.IsNone() {
		return "none"
	}
	if l.Version == 0 {
		return fmt.Sprintf("%s(%s)", l.Path, l.Origin)
	}
	return fmt.Sprintf("%s@%d(%s)", l.Path, l.Version, l.Origin)
}

// Compare orders lifetimes by path, then version, then origin.
func Compare(a, b Lifetime) int {
	if c := strings.Compare(string(a.Path), string(b.Path)); c != 0 {
		return c
	}
	if a.Version != b.Version {
		return a.Version - b.Version
	}
	return int(a.Origin) - int(b.Origin)
}

// Bundle is the set of lifetimes an expression carries. Value is the lifetime of the value
// itself, Location that of the storage it was read from (None for rvalues). Struct values
// additionally carry one value lifetime per member path.
type Bundle struct {
	Value    Lifetime
	Location Lifetime
	Members  map[ident.Path]Lifetime
}

func Single(value Lifetime) Bundle { return Bundle{Value: value} }

func (b Bundle) WithLocation(loc Lifetime) Bundle {
	b.Location = loc
	return b
}

// Lifetimes lists the value lifetime and every member lifetime, members ordered by path.
func (b Bundle) Lifetimes() []Lifetime {
	var out []Lifetime
	if !b.Value.IsNone() {
		out = append(out, b.Value)
	}
	paths := make([]ident.Path, 0, len(b.Members))
	for p := range b.Members {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	for _, p := range paths {
		out = append(out, b.Members[p])
	}
	return out
}

// Outlives is the query region resolution needs from either graph.
type Outlives interface {
	DoesOutlive(a, b Lifetime) bool
}
