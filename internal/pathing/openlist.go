package pathing

// openNode is one open-list entry. A node may appear more than once;
// entries whose fCost no longer matches the node state are stale.
type openNode struct {
	idx   int
	fCost float32
	gCost float32
}

// openList is a binary min-heap on fCost. The backing slice is kept
// between searches so a warmed-up searcher does not allocate.
type openList []openNode

func (h openList) less(i, j int) bool {
	if h[i].fCost != h[j].fCost {
		return h[i].fCost < h[j].fCost
	}
	// Prefer the node that travelled further; it is closer to the goal.
	if h[i].gCost != h[j].gCost {
		return h[i].gCost > h[j].gCost
	}
	return h[i].idx < h[j].idx
}

func (h *openList) push(n openNode) {
	*h = append(*h, n)
	h.up(len(*h) - 1)
}

func (h *openList) pop() openNode {
	old := *h
	top := old[0]
	last := len(old) - 1
	old[0] = old[last]
	*h = old[:last]
	if last > 0 {
		h.down(0)
	}
	return top
}

func (h *openList) reset() { *h = (*h)[:0] }

func (h openList) up(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if !h.less(i, p) {
			return
		}
		h[i], h[p] = h[p], h[i]
		i = p
	}
}

func (h openList) down(i int) {
	n := len(h)
	for {
		l := 2*i + 1
		if l >= n {
			return
		}
		c := l
		if r := l + 1; r < n && h.less(r, l) {
			c = r
		}
		if !h.less(c, i) {
			return
		}
		h[i], h[c] = h[c], h[i]
		i = c
	}
}
