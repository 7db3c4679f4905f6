package pathing

// cutCorners softens 45° and 90° turns. For every three consecutive
// squares a, b, c forming such a turn, the waypoint for b moves to the
// midpoint of the chord a-c if the chord is walkable and the square under
// the midpoint costs at most cornerCutCostRatio times the cost of b.
// Only Points change; Squares keep the raw search result.
func (s *Searcher) cutCorners(c MoveClass, def *SearchDef, p *Path) {
	for i := 1; i+1 < len(p.Squares); i++ {
		a, b, n := p.Squares[i-1], p.Squares[i], p.Squares[i+1]
		d1, ok1 := directionBetween(a, b)
		d2, ok2 := directionBetween(b, n)
		if !ok1 || !ok2 || d1 == d2 {
			continue
		}
		switch (d2 + numDirections - d1) % numDirections {
		case 1, 2, 6, 7:
		default:
			continue
		}

		mid := Square{X: (a.X + n.X + 1) / 2, Z: (a.Z + n.Z + 1) / 2}
		if !s.chordClear(c, def, a, n) {
			continue
		}
		midCost, ok := s.squareCost(c, def, mid)
		if !ok {
			continue
		}
		oldCost, _ := s.squareCost(c, def, b)
		if midCost > float32(cornerCutCostRatio*oldCost) {
			continue
		}

		ca := SquareCenter(a, 0)
		cn := SquareCenter(n, 0)
		p.Points[i] = Vec3{
			X: (ca.X + cn.X) / 2,
			Y: s.terrain.HeightAt(mid.X, mid.Z),
			Z: (ca.Z + cn.Z) / 2,
		}
	}
}

// chordClear reports whether every square on the line from a to b may be entered.
func (s *Searcher) chordClear(c MoveClass, def *SearchDef, a, b Square) bool {
	it := newLineIterator(a, b)
	for it.Next() {
		sq := it.Square()
		if !s.nodes.inside(sq) || s.g.admit(c, def, sq) != 0 {
			return false
		}
	}
	return true
}

// squareCost is the cost of entering sq straight on, without heat.
func (s *Searcher) squareCost(c MoveClass, def *SearchDef, sq Square) (float32, bool) {
	if !s.nodes.inside(sq) || s.g.admit(c, def, sq) != 0 {
		return 0, false
	}
	cost := float32(1 / c.SpeedMod(sq.X, sq.Z))
	return float32(cost + s.nodes.ExtraCost(sq, def.Synced)), true
}
