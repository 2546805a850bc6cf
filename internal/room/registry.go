package room

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/vkotx/gather/internal/core"
	"github.com/vkotx/gather/internal/domain"
)

var ErrRoomNotFound = errors.New("room not found")

const roomIDSpace = 1_000_000 // six decimal digits

// MediaFactory builds the peer connection adapter for a joining participant,
// bound to that participant's signal channel.
type MediaFactory func(id domain.PeerID, ch core.SignalConnection) (core.MediaConnection, error)

// Registry is the process-wide room map. It is an injected service with
// process lifetime, constructed once at startup.
type Registry struct {
	mu       sync.RWMutex
	rooms    map[domain.RoomID]*Room
	newMedia MediaFactory
}

func NewRegistry(newMedia MediaFactory) *Registry {
	return &Registry{
		rooms:    make(map[domain.RoomID]*Room),
		newMedia: newMedia,
	}
}

// CreateRoom registers a fresh room under a random six-digit code, retrying
// generation until the code is free. The room removes itself from the
// registry when its last peer leaves.
func (g *Registry) CreateRoom() domain.RoomID {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := generateID()
	for {
		if _, taken := g.rooms[id]; !taken {
			break
		}
		id = generateID()
	}
	rm := newRoom(id, func() { g.remove(id) })
	g.rooms[id] = rm
	log.Info().Str("module", "registry").Str("room", string(id)).Msg("room created")
	return id
}

// RoomExists is a pure lookup; it never creates.
func (g *Registry) RoomExists(id domain.RoomID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.rooms[id]
	return ok
}

// RoomCount reports the number of live rooms.
func (g *Registry) RoomCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms)
}

// Join admits a participant into an existing room. When the room is absent it
// returns ErrRoomNotFound without constructing a peer or a peer connection;
// a room that empties out during admission also fails with ErrRoomNotFound.
func (g *Registry) Join(id domain.RoomID, name string, ch core.SignalConnection) (*Peer, *Room, error) {
	name, err := domain.NewDisplayName(name)
	if err != nil {
		return nil, nil, err
	}

	g.mu.RLock()
	rm, ok := g.rooms[id]
	g.mu.RUnlock()
	if !ok {
		return nil, nil, fmt.Errorf("join %q: %w", id, ErrRoomNotFound)
	}

	peerID := domain.NewPeerID()
	media, err := g.newMedia(peerID, ch)
	if err != nil {
		return nil, nil, fmt.Errorf("media connection: %w", err)
	}

	peer := &Peer{
		ID:     peerID,
		Name:   name,
		Media:  media,
		Signal: ch,
	}
	// The room may have emptied out between the lookup and admission; a
	// closed room refuses the peer and the join fails like any stale code.
	if !rm.AddPeer(peer) {
		media.Close()
		return nil, nil, fmt.Errorf("join %q: %w", id, ErrRoomNotFound)
	}
	return peer, rm, nil
}

func (g *Registry) remove(id domain.RoomID) {
	g.mu.Lock()
	delete(g.rooms, id)
	g.mu.Unlock()
	log.Info().Str("module", "registry").Str("room", string(id)).Msg("room deleted")
}

// generateID returns a six-digit numeric code. Codes are join handles, not
// secrets; collisions are resolved by retry under the registry lock.
func generateID() domain.RoomID {
	return domain.RoomID(fmt.Sprintf("%06d", rand.Intn(roomIDSpace)))
}
