package rtc

import "github.com/pion/webrtc/v4"

// State is the subset of signaling states the glare guard cares about.
type State int

const (
	Stable State = iota
	HaveLocalOffer
)

func (s State) String() string {
	if s == Stable {
		return "stable"
	}
	return "have-local-offer"
}

// Observe maps the underlying signaling state onto the guard's state space.
// Anything that is not stable blocks both offer generation and offer intake.
func Observe(s webrtc.SignalingState) State {
	if s == webrtc.SignalingStateStable {
		return Stable
	}
	return HaveLocalOffer
}

// Command is a side effect the adapter must execute after a transition.
type Command int

const (
	SendOffer Command = iota
	SendAnswer
	FlushCandidates
)

// Negotiation is the glare guard: the observed signaling state plus the
// orthogonal in-flight flag. Transitions are pure; the adapter feeds in the
// observed state and executes the returned commands.
type Negotiation struct {
	State         State
	OfferInFlight bool
}

// TriggerOffer handles a negotiation-needed event. When an offer is already
// in flight or the state is not stable the trigger is skipped entirely: not
// queued, not retried. A later trigger will re-attempt.
func (n Negotiation) TriggerOffer() (Negotiation, []Command) {
	if n.OfferInFlight || n.State != Stable {
		return n, nil
	}
	n.OfferInFlight = true
	return n, []Command{SendOffer}
}

// OfferDone clears the in-flight flag. The adapter must apply it on both the
// success and failure paths of offer generation.
func (n Negotiation) OfferDone() Negotiation {
	n.OfferInFlight = false
	return n
}

// ReceiveOffer decides the fate of a remote offer. On collision the offer is
// dropped with no rollback; the losing side recovers via a future
// negotiation-needed trigger. Otherwise the adapter answers and then flushes
// any ICE candidates buffered before the remote description existed.
func (n Negotiation) ReceiveOffer() (Negotiation, []Command) {
	if n.OfferInFlight || n.State != Stable {
		return n, nil
	}
	return n, []Command{SendAnswer, FlushCandidates}
}

func has(cmds []Command, c Command) bool {
	for _, v := range cmds {
		if v == c {
			return true
		}
	}
	return false
}
