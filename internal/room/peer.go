package room

import (
	"github.com/vkotx/gather/internal/core"
	"github.com/vkotx/gather/internal/domain"
)

// Peer is one participant's server-side identity inside a room: metadata plus
// its media adapter and signal channel. A peer is owned exclusively by its
// room and destroyed when its signal channel disconnects.
type Peer struct {
	ID   domain.PeerID
	Name string
	// Index is the join order within the room, for deterministic UI ordering.
	Index int
	// HandRaised is guarded by the room mutex.
	HandRaised bool

	Media  core.MediaConnection
	Signal core.SignalConnection
}

func (p *Peer) summary() domain.PeerSummary {
	return domain.PeerSummary{
		ID:         p.ID,
		Name:       p.Name,
		Index:      p.Index,
		HandRaised: p.HandRaised,
	}
}
