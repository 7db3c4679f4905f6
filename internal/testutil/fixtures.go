package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// Fixtures содержит общие тестовые данные: карты и movedefs.
var Fixtures = struct {
	// WallMap is 16x16 with a wall across row 8 and a gap at x=12.
	WallMap string

	// MoveDefs defines "bot" (footprint 1) and "tank" (footprint 2,
	// slower on rough ground).
	MoveDefs string
}{
	WallMap: `
................
................
..~~~~..........
..~~~~..........
................
................
................
................
############.###
................
................
.....www........
.....www........
................
................
................
`,
	MoveDefs: `
return {
  { name = "bot", speed = { 1.0, 0.5, 0.0 }, heat_mod = 0.05, heat_produced = 30 },
  { name = "tank", footprint = 2, speed = { 1.0, 0.25, 0.0 }, heat_mod = 0.1, heat_produced = 50 },
}
`,
}

// WriteFile writes content into a fresh temp dir and returns its path.
func WriteFile(tb testing.TB, name, content string) string {
	tb.Helper()
	p := filepath.Join(tb.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		tb.Fatalf("writing %s: %v", name, err)
	}
	return p
}
