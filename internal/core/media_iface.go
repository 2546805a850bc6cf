package core

import (
	"context"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

// RemoteTrack is the subset of *webrtc.TrackRemote the relay layer reads.
type RemoteTrack interface {
	ID() string
	StreamID() string
	Codec() webrtc.RTPCodecParameters
	ReadRTP() (*rtp.Packet, interceptor.Attributes, error)
}

// MediaConnection wraps one participant's native WebRTC peer connection and
// its SDP/ICE negotiation. Negotiation failures are logged by the adapter and
// never tear down the room; the peer's media simply stays absent.
type MediaConnection interface {
	// Start configures internal callbacks and binds the connection lifetime to ctx.
	Start(ctx context.Context) error
	// Close stops all underlying media resources.
	Close()
	// HandleOffer applies a remote offer and answers it, unless a glare
	// collision forces the offer to be dropped.
	HandleOffer(sdp string) error
	// HandleAnswer applies a remote answer to a previously sent offer.
	HandleAnswer(sdp string) error
	// HandleRemoteCandidate applies a remote ICE candidate, buffering it in
	// arrival order while no remote description is set yet.
	HandleRemoteCandidate(webrtc.ICECandidateInit) error
	// AddLocalTrack attaches a local static RTP track, triggering renegotiation.
	AddLocalTrack(track *webrtc.TrackLocalStaticRTP) (*webrtc.RTPSender, error)
	// OnTrack sets a callback invoked when a new remote track arrives.
	OnTrack(func(ctx context.Context, track RemoteTrack))
}
