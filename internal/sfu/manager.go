package sfu

import (
	"context"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/vkotx/gather/internal/core"
	"github.com/vkotx/gather/internal/domain"
)

// Manager owns every relay in one room, keyed by publishing peer and track.
// A camera publish carries two tracks (audio and video) under one stream ID.
type Manager struct {
	mu     sync.RWMutex
	relays map[domain.PeerID]map[string]*Relay
}

func NewManager() *Manager {
	return &Manager{relays: make(map[domain.PeerID]map[string]*Relay)}
}

// Publish registers a relay for owner's remote track and starts its pump.
// A relay already registered for the same track ID stays in place, so
// repeated track events for one publish are no-ops.
func (m *Manager) Publish(ctx context.Context, owner domain.PeerID, track core.RemoteTrack) {
	logger := log.With().
		Str("module", "sfu").
		Str("owner", string(owner)).
		Str("track_id", track.ID()).
		Logger()

	relayCtx, cancel := context.WithCancel(ctx)
	relay := NewRelay(track, cancel)

	m.mu.Lock()
	byTrack, ok := m.relays[owner]
	if !ok {
		byTrack = make(map[string]*Relay)
		m.relays[owner] = byTrack
	}
	if _, ok := byTrack[track.ID()]; ok {
		m.mu.Unlock()
		cancel()
		logger.Debug().Msg("relay already registered")
		return
	}
	byTrack[track.ID()] = relay
	m.mu.Unlock()

	logger.Info().Msg("starting relay loop")
	go relay.loop(relayCtx, &logger)
}

// Subscribe attaches dst to every track owner has published. Tracks already
// forwarded to dst are skipped, so re-attempting for all streams is safe.
func (m *Manager) Subscribe(owner, dst domain.PeerID, mc core.MediaConnection) {
	if owner == dst {
		return
	}
	m.mu.RLock()
	byTrack := make([]*Relay, 0, len(m.relays[owner]))
	for _, relay := range m.relays[owner] {
		byTrack = append(byTrack, relay)
	}
	m.mu.RUnlock()

	for _, relay := range byTrack {
		if relay.HasSubscriber(dst) {
			continue
		}
		codec := relay.src.Codec()
		local, err := webrtc.NewTrackLocalStaticRTP(codec.RTPCodecCapability, relay.src.ID(), relay.src.StreamID())
		if err != nil {
			log.Error().Err(err).Str("module", "sfu").Str("dst", string(dst)).Msg("new local track")
			continue
		}
		// The slot is claimed before the track is attached, so two concurrent
		// subscribe attempts cannot both add a sender to the destination.
		if !relay.AddOutTrack(dst, NewOutTrack(local)) {
			continue
		}
		// AddLocalTrack triggers the destination's negotiation-needed flow.
		if _, err := mc.AddLocalTrack(local); err != nil {
			log.Error().Err(err).Str("module", "sfu").Str("dst", string(dst)).Msg("add local track")
			relay.removeSubscriber(dst)
			continue
		}
	}
}

// SubscribeAll attaches dst to every publisher except itself.
func (m *Manager) SubscribeAll(dst domain.PeerID, mc core.MediaConnection) {
	m.mu.RLock()
	owners := make([]domain.PeerID, 0, len(m.relays))
	for owner := range m.relays {
		owners = append(owners, owner)
	}
	m.mu.RUnlock()

	for _, owner := range owners {
		m.Subscribe(owner, dst, mc)
	}
}

// Unsubscribe drops dst's out-tracks from every relay.
func (m *Manager) Unsubscribe(dst domain.PeerID) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, byTrack := range m.relays {
		for _, relay := range byTrack {
			relay.DropSubscriber(dst)
		}
	}
}

// StopOwner stops and removes every relay owned by owner.
func (m *Manager) StopOwner(owner domain.PeerID) {
	m.mu.Lock()
	byTrack, ok := m.relays[owner]
	if ok {
		delete(m.relays, owner)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	for _, relay := range byTrack {
		relay.markAllDelete()
		if relay.cancel != nil {
			relay.cancel()
		}
	}
}
