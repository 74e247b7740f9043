package journal

// ResyncReason records one way a mirror disagreed with the authority about a
// combatant: a relocated or evicted cell, a pool mismatch, a clash whose
// replay landed differently.
type ResyncReason struct {
	Kind     string
	EntityID int64
}

// ResyncSignal is handed to a mirror that should drop its predictions and
// request a full snapshot.
type ResyncSignal struct {
	Divergences uint64
	TotalEvents uint64
	Reasons     []ResyncReason
}

// Policy tallies the combatants a mirror reconciled and the clashes it
// replayed against the divergences it found while doing so. One divergence
// per hundred reconciled events is enough to ask for a full snapshot.
type Policy struct {
	totalEvents uint64
	divergences uint64
	pending     bool
	reasons     []ResyncReason
}

const (
	divergenceThresholdPerHundred = 1
	resyncReasonLimit             = 8
)

func NewPolicy() *Policy {
	return &Policy{reasons: make([]ResyncReason, 0, resyncReasonLimit)}
}

// NoteEvent counts one reconciled combatant or replayed clash.
func (p *Policy) NoteEvent() {
	if p == nil {
		return
	}
	if p.totalEvents == ^uint64(0) {
		p.totalEvents /= 2
		p.divergences /= 2
	}
	p.totalEvents++
}

// NoteDivergence records a disagreement about entityID. Repeats of the same
// kind for the same combatant count toward the ratio but keep one reason.
func (p *Policy) NoteDivergence(kind string, entityID int64) {
	if p == nil {
		return
	}
	p.divergences++
	reason := ResyncReason{Kind: kind, EntityID: entityID}
	if len(p.reasons) < resyncReasonLimit && !p.hasReason(reason) {
		p.reasons = append(p.reasons, reason)
	}
	if !p.pending && p.divergences*100 >= max(p.totalEvents, 1)*divergenceThresholdPerHundred {
		p.pending = true
	}
}

func (p *Policy) hasReason(reason ResyncReason) bool {
	for _, existing := range p.reasons {
		if existing == reason {
			return true
		}
	}
	return false
}

// Consume returns the pending signal and starts a fresh tally.
func (p *Policy) Consume() (ResyncSignal, bool) {
	if p == nil || !p.pending {
		return ResyncSignal{}, false
	}
	signal := ResyncSignal{
		Divergences: p.divergences,
		TotalEvents: p.totalEvents,
		Reasons:     append([]ResyncReason(nil), p.reasons...),
	}
	p.pending = false
	p.totalEvents = 0
	p.divergences = 0
	p.reasons = p.reasons[:0]
	return signal, true
}
