// Package sfu forwards each publisher's RTP packets to every other peer's
// connection: one relay per published track, one out-track per subscriber.
package sfu

import (
	"context"
	"maps"
	"sync"

	"github.com/pion/rtp"
	"github.com/rs/zerolog"

	"github.com/vkotx/gather/internal/core"
	"github.com/vkotx/gather/internal/domain"
)

// Relay pumps one remote track into its subscribers' out-tracks.
type Relay struct {
	src core.RemoteTrack

	mu  sync.RWMutex
	out map[domain.PeerID]*OutTrack

	cancel context.CancelFunc
}

func NewRelay(src core.RemoteTrack, cancel context.CancelFunc) *Relay {
	return &Relay{
		src:    src,
		out:    make(map[domain.PeerID]*OutTrack),
		cancel: cancel,
	}
}

// loop reads RTP packets from the source track and forwards them until the
// context is cancelled or the source ends.
func (r *Relay) loop(ctx context.Context, logger *zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("relay ctx done, marking all out tracks for delete")
			r.markAllDelete()
			return
		default:
		}
		pkt, _, err := r.src.ReadRTP()
		if err != nil {
			logger.Info().Err(err).Msg("relay source ended")
			r.markAllDelete()
			return
		}
		r.forward(pkt, logger)
	}
}

func (r *Relay) forward(pkt *rtp.Packet, logger *zerolog.Logger) {
	snapshot := make(map[domain.PeerID]*OutTrack, len(r.out))
	r.mu.RLock()
	maps.Copy(snapshot, r.out)
	r.mu.RUnlock()

	dirty := make([]domain.PeerID, 0, len(snapshot))
	for dst, ot := range snapshot {
		switch ot.GetState() {
		case TrackStateDelete:
			dirty = append(dirty, dst)
		case TrackStateOk:
			if err := ot.Track.WriteRTP(pkt); err != nil {
				logger.Error().Err(err).Str("dst", string(dst)).Msg("relay write RTP error")
				ot.MarkDelete()
				dirty = append(dirty, dst)
			}
		}
	}

	// Cleanup happens outside the read lock.
	if len(dirty) > 0 {
		r.mu.Lock()
		for _, dst := range dirty {
			delete(r.out, dst)
		}
		r.mu.Unlock()
	}
}

func (r *Relay) markAllDelete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ot := range r.out {
		ot.MarkDelete()
	}
}

// AddOutTrack registers an out-track for dst. Reports false when dst is
// already subscribed; forwarding state is explicit, duplicates are a no-op.
func (r *Relay) AddOutTrack(dst domain.PeerID, ot *OutTrack) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.out[dst]; ok {
		return false
	}
	r.out[dst] = ot
	return true
}

// HasSubscriber reports whether dst already receives this track.
func (r *Relay) HasSubscriber(dst domain.PeerID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.out[dst]
	return ok
}

// removeSubscriber releases dst's slot immediately, for claims that could not
// be completed.
func (r *Relay) removeSubscriber(dst domain.PeerID) {
	r.mu.Lock()
	delete(r.out, dst)
	r.mu.Unlock()
}

// DropSubscriber marks dst's out-track for removal on the next forward pass.
func (r *Relay) DropSubscriber(dst domain.PeerID) {
	r.mu.RLock()
	ot, ok := r.out[dst]
	r.mu.RUnlock()
	if ok {
		ot.MarkDelete()
	}
}
