package terrain

import (
	"fmt"
	"strings"
)

// Parse builds a map from rows of text, one character per square:
//
//	.  open ground
//	#  structure
//	~  rough ground
//	w  water
//
// Every row must have the same length. Blank lines and surrounding
// whitespace are ignored.
func Parse(name, text string) (*Map, error) {
	var rows []string
	for line := range strings.SplitSeq(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			rows = append(rows, line)
		}
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("parse map %s: no rows", name)
	}

	width := len(rows[0])
	m, err := New(name, width, len(rows))
	if err != nil {
		return nil, fmt.Errorf("parse map %s: %w", name, err)
	}
	for z, row := range rows {
		if len(row) != width {
			return nil, fmt.Errorf("parse map %s: row %d has %d squares, want %d", name, z, len(row), width)
		}
		for x, ch := range []byte(row) {
			switch ch {
			case '.':
			case '#':
				m.blocked[m.index(x, z)] = true
			case '~':
				m.types[m.index(x, z)] = TypeRough
			case 'w':
				m.types[m.index(x, z)] = TypeWater
			default:
				return nil, fmt.Errorf("parse map %s: unknown square %q at %d,%d", name, ch, x, z)
			}
		}
	}
	return m, nil
}
