package status

// Scores weighs statuses when ranking presences. Higher is more available.
type Scores struct {
	Primitive [numPrimitives]int
	Idle      int
	IdleTime  int
}

// DefaultScores returns the stock score table
func DefaultScores() Scores {
	var s Scores
	s.Primitive[PrimitiveUnset] = 0
	s.Primitive[PrimitiveOffline] = -500
	s.Primitive[PrimitiveAvailable] = 100
	s.Primitive[PrimitiveUnavailable] = -75
	s.Primitive[PrimitiveInvisible] = -50
	s.Primitive[PrimitiveAway] = -100
	s.Primitive[PrimitiveExtendedAway] = -200
	s.Primitive[PrimitiveMobile] = -400
	s.Idle = -10
	s.IdleTime = -5
	return s
}

// Ranker orders statuses and presences by availability
type Ranker struct {
	Scores Scores
}

// NewRanker creates a ranker with the given score table
func NewRanker(scores Scores) *Ranker {
	return &Ranker{Scores: scores}
}

func (r *Ranker) statusScore(s *Status) int {
	if s == nil || !s.active {
		return 0
	}
	return r.Scores.Primitive[s.Primitive()]
}

// CompareStatus returns -1 when a is more available than b, 1 when less,
// and 0 when they rank equally. Inactive statuses score zero.
func (r *Ranker) CompareStatus(a, b *Status) int {
	if a == b {
		return 0
	}
	sa, sb := r.statusScore(a), r.statusScore(b)
	switch {
	case sa > sb:
		return -1
	case sa < sb:
		return 1
	default:
		return 0
	}
}

// Score returns the total of a presence: the scores of its active
// statuses, the owner's "score" setting and the idle penalty.
func (r *Ranker) Score(p *Presence) int {
	total := 0
	for _, s := range p.statuses {
		total += r.statusScore(s)
	}
	if p.owner != nil {
		total += p.owner.GetInt("score", 0)
	}
	if p.IsIdle() {
		total += r.Scores.Idle
	}
	return total
}

// idleSince returns when p became idle and whether it is idle with a
// known start time
func idleSince(p *Presence) (int64, bool) {
	if !p.IsIdle() || p.idleTime.IsZero() {
		return 0, false
	}
	return p.idleTime.UnixNano(), true
}

// ComparePresence returns -1 when p1 should sort before p2, 1 when after,
// and 0 when they rank equally. Nil presences sort last. When totals tie
// and the idle-time score is non-zero, a presence that is not idle sorts
// before an idle one and the presence idle for longer sorts last. The
// order depends only on each presence's own (score, idle start) key, so
// it is a total preorder.
func (r *Ranker) ComparePresence(p1, p2 *Presence) int {
	if p1 == p2 {
		return 0
	}
	if p1 == nil {
		return 1
	}
	if p2 == nil {
		return -1
	}

	s1, s2 := r.Score(p1), r.Score(p2)
	switch {
	case s1 > s2:
		return -1
	case s1 < s2:
		return 1
	}

	if r.Scores.IdleTime == 0 {
		return 0
	}
	t1, idle1 := idleSince(p1)
	t2, idle2 := idleSince(p2)
	switch {
	case idle1 && !idle2:
		return 1
	case !idle1 && idle2:
		return -1
	case t1 > t2:
		return -1
	case t1 < t2:
		return 1
	default:
		return 0
	}
}
