package pathing

// Tier is one resolution level of the hierarchy.
type Tier int

const (
	TierFine Tier = iota
	TierMed
	TierLow

	numTiers = 3
)

func (t Tier) String() string {
	switch t {
	case TierFine:
		return "fine"
	case TierMed:
		return "med"
	case TierLow:
		return "low"
	default:
		return "unknown"
	}
}

// Stage tracks how far a MultiPath has been refined and consumed.
type Stage int

const (
	StageRequested Stage = iota
	StageLowResSearched
	StageMedResRefined
	StageFineResRefined
	StageConsuming
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageRequested:
		return "requested"
	case StageLowResSearched:
		return "low_res_searched"
	case StageMedResRefined:
		return "med_res_refined"
	case StageFineResRefined:
		return "fine_res_refined"
	case StageConsuming:
		return "consuming"
	case StageDone:
		return "done"
	default:
		return "unknown"
	}
}

// MultiPath is one path request spread over up to three tiers. Each tier
// holds the waypoints not yet consumed; finer tiers are rebuilt from the
// next waypoint of the coarser one as the agent advances.
type MultiPath struct {
	ID      uint32
	ClassID int
	Synced  bool

	Start      Vec3
	Goal       Vec3
	GoalSquare Square
	Radius     float32 // squares

	// SearchTier is the coarsest tier holding a path.
	SearchTier Tier
	Result     SearchResult
	Stage      Stage

	paths [numTiers]Path
	// final marks tiers whose path already ends the route; they are not
	// refined again.
	final [numTiers]bool
}

// Waypoints returns copies of the remaining points of a tier.
func (mp *MultiPath) Waypoints(t Tier) []Vec3 {
	return append([]Vec3(nil), mp.paths[t].Points...)
}

// anchorFine pins the first fine waypoint to the agent's exact position
// when it lies in the agent's own square. A rebuilt buffer then never
// leads back to the centre of the square the agent is already in.
func (mp *MultiPath) anchorFine(from Square, pos Vec3) {
	fp := &mp.paths[TierFine]
	if fp.Len() > 0 && fp.Squares[0] == from {
		fp.Points[0] = pos
	}
}
