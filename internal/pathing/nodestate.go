package pathing

// nodeFlag is the per-node status mask.
type nodeFlag uint8

const (
	nodeOpen nodeFlag = 1 << iota
	nodeClosed
	nodeBlocked   // structural or outside the search constraint
	nodeForbidden // speed modifier is zero
	nodeStart
	nodeChecked // passed admission; edge cost still pending
)

// NodeStateBuffer holds mutable search state for every node of one tier.
// Only nodes touched by the previous search are cleared on reset.
type NodeStateBuffer struct {
	width, height int

	fCost  []float32
	gCost  []float32
	mask   []nodeFlag
	parent []Direction
	dirty  []int

	// Extra-cost overlays survive resets. Allocated on first write.
	extraSynced   []float32
	extraUnsynced []float32
}

// NewNodeStateBuffer allocates state for a width x height node grid.
func NewNodeStateBuffer(width, height int) *NodeStateBuffer {
	n := width * height
	return &NodeStateBuffer{
		width:  width,
		height: height,
		fCost:  make([]float32, n),
		gCost:  make([]float32, n),
		mask:   make([]nodeFlag, n),
		parent: make([]Direction, n),
		dirty:  make([]int, 0, 256),
	}
}

// Size returns the buffer dimensions in nodes.
func (b *NodeStateBuffer) Size() (int, int) { return b.width, b.height }

func (b *NodeStateBuffer) index(n Square) int { return n.Z*b.width + n.X }

func (b *NodeStateBuffer) inside(n Square) bool {
	return n.X >= 0 && n.X < b.width && n.Z >= 0 && n.Z < b.height
}

// setFlag adds f to the node mask, recording the node as dirty the first
// time it leaves the untouched state.
func (b *NodeStateBuffer) setFlag(idx int, f nodeFlag) {
	if b.mask[idx] == 0 {
		b.dirty = append(b.dirty, idx)
	}
	b.mask[idx] |= f
}

func (b *NodeStateBuffer) has(idx int, f nodeFlag) bool { return b.mask[idx]&f != 0 }

// reset clears every node touched since the last reset.
func (b *NodeStateBuffer) reset() {
	for _, idx := range b.dirty {
		b.mask[idx] = 0
		b.fCost[idx] = 0
		b.gCost[idx] = 0
		b.parent[idx] = 0
	}
	b.dirty = b.dirty[:0]
}

// SetExtraCost installs a per-node cost bias. Negative costs are clamped to zero.
func (b *NodeStateBuffer) SetExtraCost(n Square, cost float32, synced bool) {
	if !b.inside(n) {
		return
	}
	cost = max(cost, 0)
	overlay := &b.extraUnsynced
	if synced {
		overlay = &b.extraSynced
	}
	if *overlay == nil {
		if cost == 0 {
			return
		}
		*overlay = make([]float32, b.width*b.height)
	}
	(*overlay)[b.index(n)] = cost
}

// ExtraCost returns the bias for n from the requested overlay.
func (b *NodeStateBuffer) ExtraCost(n Square, synced bool) float32 {
	if !b.inside(n) {
		return 0
	}
	return b.extraCostAt(b.index(n), synced)
}

func (b *NodeStateBuffer) extraCostAt(idx int, synced bool) float32 {
	overlay := b.extraUnsynced
	if synced {
		overlay = b.extraSynced
	}
	if overlay == nil {
		return 0
	}
	return overlay[idx]
}
