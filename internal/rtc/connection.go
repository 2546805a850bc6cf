// Package rtc adapts one participant's pion PeerConnection: description
// negotiation, the glare guard and ICE candidate exchange.
package rtc

import (
	"context"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vkotx/gather/internal/config"
	"github.com/vkotx/gather/internal/core"
	"github.com/vkotx/gather/internal/domain"
	"github.com/vkotx/gather/internal/protocol"
)

// Configuration builds a pion configuration from the configured ICE servers.
func Configuration(servers []config.ICEServer) webrtc.Configuration {
	out := webrtc.Configuration{}
	for _, s := range servers {
		out.ICEServers = append(out.ICEServers, webrtc.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}
	return out
}

// Connection implements core.MediaConnection on top of *webrtc.PeerConnection.
// Outbound offers, answers and candidates go out over the peer's own signal
// channel.
type Connection struct {
	pc     *webrtc.PeerConnection
	id     domain.PeerID
	ch     core.SignalConnection
	logger zerolog.Logger
	cancel context.CancelFunc

	mu      sync.Mutex
	neg     Negotiation
	pending []webrtc.ICECandidateInit
	onTrack func(ctx context.Context, track core.RemoteTrack)
}

func New(cfg webrtc.Configuration, id domain.PeerID, ch core.SignalConnection) (*Connection, error) {
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, fmt.Errorf("new peer connection: %w", err)
	}
	logger := log.With().Str("module", "rtc").Str("peer", string(id)).Logger()
	return &Connection{pc: pc, id: id, ch: ch, logger: logger}, nil
}

// OnTrack sets the application-level callback for remote tracks.
func (c *Connection) OnTrack(fn func(ctx context.Context, track core.RemoteTrack)) {
	c.mu.Lock()
	c.onTrack = fn
	c.mu.Unlock()
}

func (c *Connection) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		c.logger.Info().Str("ice_state", s.String()).Msg("ICE state")
		if s == webrtc.ICEConnectionStateDisconnected ||
			s == webrtc.ICEConnectionStateFailed ||
			s == webrtc.ICEConnectionStateClosed {
			cancel()
		}
	})

	c.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		c.logger.Info().Str("peer_connection_state", s.String()).Msg("peer state")
	})

	c.pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		// nil is the end-of-candidates marker and is not forwarded.
		if cand == nil {
			return
		}
		c.send(protocol.ICECandidate{
			Type:             protocol.TypeICECandidate,
			ICECandidateInit: cand.ToJSON(),
		})
	})

	c.pc.OnNegotiationNeeded(func() {
		c.negotiate()
	})

	c.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		c.logger.Info().
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Str("stream_id", track.StreamID()).
			Msg("remote track")
		c.mu.Lock()
		fn := c.onTrack
		c.mu.Unlock()
		if fn != nil {
			fn(ctx, track)
		}
	})

	return nil
}

// negotiate creates and transmits an offer unless the glare guard skips the
// trigger. The in-flight flag is cleared on every path.
func (c *Connection) negotiate() {
	c.mu.Lock()
	c.neg.State = Observe(c.pc.SignalingState())
	next, cmds := c.neg.TriggerOffer()
	c.neg = next
	c.mu.Unlock()

	if !has(cmds, SendOffer) {
		c.logger.Debug().Str("state", next.State.String()).Bool("in_flight", next.OfferInFlight).Msg("negotiation trigger skipped")
		return
	}
	defer func() {
		c.mu.Lock()
		c.neg = c.neg.OfferDone()
		c.mu.Unlock()
	}()

	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		c.logger.Error().Err(err).Msg("create offer")
		return
	}
	if err := c.pc.SetLocalDescription(offer); err != nil {
		c.logger.Error().Err(err).Msg("set local offer")
		return
	}
	c.send(protocol.SessionDescription{Type: protocol.TypeOffer, SDP: offer.SDP})
}

func (c *Connection) HandleOffer(sdp string) error {
	c.mu.Lock()
	c.neg.State = Observe(c.pc.SignalingState())
	next, cmds := c.neg.ReceiveOffer()
	c.neg = next
	c.mu.Unlock()

	if !has(cmds, SendAnswer) {
		c.logger.Warn().Str("state", next.State.String()).Bool("in_flight", next.OfferInFlight).Msg("offer collision, dropping")
		return nil
	}

	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}
	if err := c.pc.SetRemoteDescription(offer); err != nil {
		return fmt.Errorf("set remote offer: %w", err)
	}
	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("create answer: %w", err)
	}
	if err := c.pc.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("set local answer: %w", err)
	}
	c.send(protocol.SessionDescription{Type: protocol.TypeAnswer, SDP: answer.SDP})

	if has(cmds, FlushCandidates) {
		c.flushCandidates()
	}
	return nil
}

func (c *Connection) HandleAnswer(sdp string) error {
	answer := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp}
	if err := c.pc.SetRemoteDescription(answer); err != nil {
		return fmt.Errorf("set remote answer: %w", err)
	}
	// Candidates may have arrived while the offer was unanswered.
	c.flushCandidates()
	return nil
}

func (c *Connection) HandleRemoteCandidate(ci webrtc.ICECandidateInit) error {
	c.mu.Lock()
	if c.pc.RemoteDescription() == nil {
		c.pending = append(c.pending, ci)
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()
	return c.pc.AddICECandidate(ci)
}

// flushCandidates applies buffered candidates in arrival order.
func (c *Connection) flushCandidates() {
	c.mu.Lock()
	buf := c.pending
	c.pending = nil
	c.mu.Unlock()
	for _, ci := range buf {
		if err := c.pc.AddICECandidate(ci); err != nil {
			c.logger.Error().Err(err).Msg("add buffered ice candidate")
		}
	}
}

func (c *Connection) AddLocalTrack(track *webrtc.TrackLocalStaticRTP) (*webrtc.RTPSender, error) {
	return c.pc.AddTrack(track)
}

func (c *Connection) Close() {
	if c.cancel != nil {
		c.cancel()
	}
	if err := c.pc.Close(); err != nil {
		c.logger.Error().Err(err).Msg("close error")
		return
	}
	c.logger.Info().Msg("closed")
}

func (c *Connection) send(v any) {
	frame, err := protocol.Encode(v)
	if err != nil {
		c.logger.Error().Err(err).Msg("encode signal message")
		return
	}
	if err := c.ch.TrySend(frame); err != nil {
		c.logger.Warn().Err(err).Msg("signal send dropped")
	}
}
