// Package room holds the room registry and the per-room coordination logic:
// peer admission and removal, track fan-out, reactions and chat history.
package room

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vkotx/gather/internal/core"
	"github.com/vkotx/gather/internal/domain"
	"github.com/vkotx/gather/internal/protocol"
	"github.com/vkotx/gather/internal/sfu"
)

// Room owns its peers, the set of published streams and the ordered chat
// history. One mutex guards all three; media attachment and offer generation
// are dispatched outside the critical section.
type Room struct {
	ID domain.RoomID

	mu       sync.Mutex
	peers    map[domain.PeerID]*Peer
	streams  map[domain.PeerID]string // owner -> stream ID
	messages []domain.ChatItem
	// closed is set when the last peer leaves. A closed room never admits
	// again; a joiner holding a stale pointer is bounced back to the registry.
	closed bool

	relays *sfu.Manager
	// onEmpty fires when the last peer leaves; the sole path to destruction.
	onEmpty func()
	logger  zerolog.Logger
}

func newRoom(id domain.RoomID, onEmpty func()) *Room {
	return &Room{
		ID:      id,
		peers:   make(map[domain.PeerID]*Peer),
		streams: make(map[domain.PeerID]string),
		relays:  sfu.NewManager(),
		onEmpty: onEmpty,
		logger:  log.With().Str("module", "room").Str("room", string(id)).Logger(),
	}
}

// AddPeer admits a peer: the room-state snapshot goes out before the peer is
// inserted, so it never lists the peer itself, then the arrival is broadcast
// and every already-published stream is pushed into the newcomer's connection.
// Reports false when the room already emptied out and is being torn down.
func (r *Room) AddPeer(p *Peer) bool {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return false
	}
	p.Index = len(r.peers)
	r.sendTo(p, protocol.RoomState{
		Type:         protocol.TypeRoomState,
		Peers:        r.peerSummariesLocked(),
		StreamOwners: r.streamOwnersLocked(),
		Messages:     append([]domain.ChatItem(nil), r.messages...),
	})
	r.peers[p.ID] = p
	r.broadcastLocked(p.ID, protocol.PeerJoined{
		Type:  protocol.TypePeerJoined,
		ID:    p.ID,
		Name:  p.Name,
		Index: p.Index,
	})
	r.mu.Unlock()

	p.Media.OnTrack(func(ctx context.Context, track core.RemoteTrack) {
		r.HandleTrack(ctx, p, track)
	})

	// Existing publishers' tracks are attached immediately so the newcomer
	// starts receiving without waiting for an unrelated negotiation round.
	r.relays.SubscribeAll(p.ID, p.Media)

	r.logger.Info().Str("peer", string(p.ID)).Str("name", p.Name).Int("index", p.Index).Msg("peer joined")
	return true
}

// RemovePeer handles a disconnect: remaining peers learn about the departure,
// the media connection is closed and all relay state for the peer is dropped.
// Removal from the maps happens before any further broadcast can see the peer.
func (r *Room) RemovePeer(p *Peer) {
	r.mu.Lock()
	if _, ok := r.peers[p.ID]; !ok {
		r.mu.Unlock()
		return
	}
	delete(r.peers, p.ID)
	delete(r.streams, p.ID)
	r.broadcastLocked(p.ID, protocol.PeerLeft{Type: protocol.TypePeerLeft, ID: p.ID})
	empty := len(r.peers) == 0
	if empty {
		r.closed = true
	}
	r.mu.Unlock()

	r.relays.StopOwner(p.ID)
	r.relays.Unsubscribe(p.ID)
	p.Media.Close()

	r.logger.Info().Str("peer", string(p.ID)).Msg("peer left")
	if empty && r.onEmpty != nil {
		r.onEmpty()
	}
}

// HandleTrack relays a newly published track: announce the publisher at most
// once per stream, record it, then fan the track out to every other peer.
// Forwarding state is explicit per (peer, track), so repeated attempts for
// already-forwarded tracks are no-ops rather than swallowed errors.
func (r *Room) HandleTrack(ctx context.Context, p *Peer, track core.RemoteTrack) {
	streamID := track.StreamID()

	r.mu.Lock()
	if _, ok := r.peers[p.ID]; !ok {
		r.mu.Unlock()
		return
	}
	prev, had := r.streams[p.ID]
	r.streams[p.ID] = streamID
	if !had || prev != streamID {
		r.broadcastLocked(p.ID, protocol.PeerStream{
			Type:     protocol.TypePeerStream,
			StreamID: streamID,
			PeerID:   p.ID,
		})
	}
	subscribers := make([]*Peer, 0, len(r.peers)-1)
	for id, other := range r.peers {
		if id != p.ID {
			subscribers = append(subscribers, other)
		}
	}
	r.mu.Unlock()

	r.logger.Debug().Str("peer", string(p.ID)).Str("stream", streamID).Str("track", track.ID()).Msg("track published")

	// Negotiation side effects run outside the room lock.
	r.relays.Publish(ctx, p.ID, track)
	for _, other := range subscribers {
		r.relays.Subscribe(p.ID, other.ID, other.Media)
	}
}

// HandleReaction validates and broadcasts a reaction tag. Hand reactions
// also toggle the peer's hand-raise flag, which later snapshots reflect.
func (r *Room) HandleReaction(p *Peer, tag string) error {
	if !domain.ValidReaction(tag) {
		return domain.ErrUnknownReaction
	}
	r.mu.Lock()
	switch tag {
	case domain.ReactionHandUp:
		p.HandRaised = true
	case domain.ReactionHandDown:
		p.HandRaised = false
	}
	r.broadcastLocked(p.ID, protocol.Reaction{
		Type:     protocol.TypeReaction,
		Reaction: tag,
		PeerID:   p.ID,
	})
	r.mu.Unlock()
	return nil
}

// HandleChat stamps raw text into a ChatItem, appends it to the history and
// broadcasts it to everyone else.
func (r *Room) HandleChat(p *Peer, text string) domain.ChatItem {
	item := domain.ChatItem{
		AuthorID:   p.ID,
		AuthorName: p.Name,
		Message:    text,
		TimeStamp:  time.Now().UnixMilli(),
	}
	r.mu.Lock()
	r.messages = append(r.messages, item)
	r.broadcastLocked(p.ID, protocol.Chat{
		Type:       protocol.TypeMessage,
		Message:    item.Message,
		AuthorID:   item.AuthorID,
		AuthorName: item.AuthorName,
		TimeStamp:  item.TimeStamp,
	})
	r.mu.Unlock()
	return item
}

func (r *Room) PeerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.peers)
}

// Peers returns a point-in-time participant snapshot.
func (r *Room) Peers() []domain.PeerSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.peerSummariesLocked()
}

// StreamOwners returns the published streams and their owners.
func (r *Room) StreamOwners() []domain.StreamOwner {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.streamOwnersLocked()
}

// Messages returns the chat history in arrival order.
func (r *Room) Messages() []domain.ChatItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.ChatItem(nil), r.messages...)
}

func (r *Room) peerSummariesLocked() []domain.PeerSummary {
	out := make([]domain.PeerSummary, 0, len(r.peers))
	for _, p := range r.peers {
		out = append(out, p.summary())
	}
	return out
}

func (r *Room) streamOwnersLocked() []domain.StreamOwner {
	out := make([]domain.StreamOwner, 0, len(r.streams))
	for owner, streamID := range r.streams {
		out = append(out, domain.StreamOwner{StreamID: streamID, PeerID: owner})
	}
	return out
}

// broadcastLocked fans a message out to every peer except from. TrySend never
// blocks; a full buffer drops the frame for that subscriber only.
func (r *Room) broadcastLocked(from domain.PeerID, v any) {
	frame, err := protocol.Encode(v)
	if err != nil {
		r.logger.Error().Err(err).Msg("encode broadcast")
		return
	}
	for id, p := range r.peers {
		if id == from {
			continue
		}
		if err := p.Signal.TrySend(frame); err != nil {
			r.logger.Warn().Err(err).Str("peer", string(id)).Msg("broadcast dropped")
		}
	}
}

func (r *Room) sendTo(p *Peer, v any) {
	frame, err := protocol.Encode(v)
	if err != nil {
		r.logger.Error().Err(err).Msg("encode message")
		return
	}
	if err := p.Signal.TrySend(frame); err != nil {
		r.logger.Warn().Err(err).Str("peer", string(p.ID)).Msg("send dropped")
	}
}
