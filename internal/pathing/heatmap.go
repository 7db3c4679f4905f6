package pathing

// HeatCell stores the strongest recent deposit on a heat square.
type HeatCell struct {
	Value int32
	Owner int
}

// HeatMap is a congestion overlay. Values are stored biased by an offset
// that grows by one per tick, so every deposit decays without touching
// the grid. One heat cell covers scale x scale fine squares.
type HeatMap struct {
	scale         int
	width, height int
	cells         []HeatCell
	offset        int32
}

// NewHeatMap covers a mapX x mapZ square map. scale below 1 is treated as 1.
func NewHeatMap(mapX, mapZ, scale int) *HeatMap {
	scale = max(scale, 1)
	w := (mapX + scale - 1) / scale
	h := (mapZ + scale - 1) / scale
	return &HeatMap{
		scale:  scale,
		width:  w,
		height: h,
		cells:  make([]HeatCell, w*h),
	}
}

func (m *HeatMap) cell(sq Square) *HeatCell {
	x := sq.X / m.scale
	z := sq.Z / m.scale
	if sq.X < 0 || sq.Z < 0 || x >= m.width || z >= m.height {
		return nil
	}
	return &m.cells[z*m.width+x]
}

// Deposit records value heat on sq for owner, unless a stronger deposit
// is still active there.
func (m *HeatMap) Deposit(sq Square, value int32, owner int) {
	c := m.cell(sq)
	if c == nil {
		return
	}
	if c.Value < value+m.offset {
		c.Value = value + m.offset
		c.Owner = owner
	}
}

// Cost returns the remaining heat on sq as seen by owner. An agent never
// pays for its own deposit.
func (m *HeatMap) Cost(sq Square, owner int) float32 {
	c := m.cell(sq)
	if c == nil || c.Owner == owner {
		return 0
	}
	return float32(max(c.Value-m.offset, 0))
}

// Update advances decay by one tick.
func (m *HeatMap) Update() { m.offset++ }
