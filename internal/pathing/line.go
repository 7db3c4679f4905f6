package pathing

// lineIterator walks the squares of a Bresenham line, start included.
type lineIterator struct {
	cur, target  Square
	dx, dz       int
	stepX, stepZ int
	err          int
	xDominant    bool
	started      bool
}

func newLineIterator(from, to Square) lineIterator {
	it := lineIterator{
		cur:    from,
		target: to,
		dx:     absInt(to.X - from.X),
		dz:     absInt(to.Z - from.Z),
		stepX:  1,
		stepZ:  1,
	}
	if to.X < from.X {
		it.stepX = -1
	}
	if to.Z < from.Z {
		it.stepZ = -1
	}
	it.xDominant = it.dx >= it.dz
	if it.xDominant {
		it.err = it.dx / 2
	} else {
		it.err = it.dz / 2
	}
	return it
}

// Next advances to the next square. It returns false past the target.
func (it *lineIterator) Next() bool {
	if !it.started {
		it.started = true
		return true
	}
	if it.cur == it.target {
		return false
	}
	if it.xDominant {
		it.cur.X += it.stepX
		it.err += it.dz
		if it.err >= it.dx {
			it.cur.Z += it.stepZ
			it.err -= it.dx
		}
	} else {
		it.cur.Z += it.stepZ
		it.err += it.dx
		if it.err >= it.dz {
			it.cur.X += it.stepX
			it.err -= it.dz
		}
	}
	return true
}

// Square returns the current square.
func (it *lineIterator) Square() Square { return it.cur }
