package tile

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hupe1980/geotile/internal/tess"
)

// indexName is the blob holding a tile's index record.
const indexName = "index"

// Path identifies a tile: a root index followed by one child index (0-3)
// per level.
type Path struct {
	Root     int
	Children []uint8
}

// RootPath returns the path of root i.
func RootPath(i int) Path { return Path{Root: i} }

// Level is the depth below the root.
func (p Path) Level() int { return len(p.Children) }

// Child returns the path of child i.
func (p Path) Child(i int) Path {
	c := make([]uint8, len(p.Children)+1)
	copy(c, p.Children)
	c[len(p.Children)] = uint8(i)
	return Path{Root: p.Root, Children: c}
}

// Parent returns the parent path; ok is false for roots.
func (p Path) Parent() (Path, bool) {
	if len(p.Children) == 0 {
		return p, false
	}
	return Path{Root: p.Root, Children: p.Children[:len(p.Children)-1]}, true
}

// String renders the storage directory, e.g. "07/2/0/3".
func (p Path) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%02d", p.Root)
	for _, c := range p.Children {
		b.WriteByte('/')
		b.WriteByte('0' + c)
	}
	return b.String()
}

// Blob returns the name of a blob stored with the tile.
func (p Path) Blob(name string) string {
	return p.String() + "/" + name
}

// ParsePath parses the form produced by String.
func ParsePath(s string) (Path, error) {
	parts := strings.Split(strings.Trim(s, "/"), "/")
	root, err := strconv.Atoi(parts[0])
	if err != nil || root < 0 || root >= tess.NumRoots {
		return Path{}, fmt.Errorf("invalid tile path %q", s)
	}
	p := Path{Root: root}
	for _, c := range parts[1:] {
		if len(c) != 1 || c[0] < '0' || c[0] > '3' {
			return Path{}, fmt.Errorf("invalid tile path %q", s)
		}
		p.Children = append(p.Children, c[0]-'0')
	}
	return p, nil
}
