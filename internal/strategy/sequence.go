package strategy

// SequenceGuard drops order books that are stale, duplicated or delivered
// out of order. It does not buffer or reorder.
type SequenceGuard struct {
	last uint64
}

func (g *SequenceGuard) Accept(seq uint64) bool {
	if seq <= g.last {
		return false
	}
	g.last = seq
	return true
}

func (g *SequenceGuard) Last() uint64 {
	return g.last
}
