package rtc

import (
	"sync"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vkotx/gather/internal/core"
	"github.com/vkotx/gather/internal/protocol"
)

type fakeSignal struct {
	mu     sync.Mutex
	frames []core.Frame
}

func (f *fakeSignal) TrySend(fr core.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, fr)
	return nil
}

func (f *fakeSignal) Close() {}

func (f *fakeSignal) types(t *testing.T) []string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.frames))
	for _, fr := range f.frames {
		typ, err := protocol.Peek(fr)
		require.NoError(t, err)
		out = append(out, typ)
	}
	return out
}

// remoteOffer builds a real SDP offer from a second in-process peer connection.
func remoteOffer(t *testing.T) string {
	t.Helper()
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pc.Close() })

	_, err = pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio)
	require.NoError(t, err)

	offer, err := pc.CreateOffer(nil)
	require.NoError(t, err)
	require.NoError(t, pc.SetLocalDescription(offer))
	return offer.SDP
}

func hostCandidate(port string) webrtc.ICECandidateInit {
	mid := "0"
	var idx uint16
	return webrtc.ICECandidateInit{
		Candidate:     "candidate:1 1 udp 2122260223 127.0.0.1 " + port + " typ host",
		SDPMid:        &mid,
		SDPMLineIndex: &idx,
	}
}

func (c *Connection) bufferedCandidates() []webrtc.ICECandidateInit {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]webrtc.ICECandidateInit(nil), c.pending...)
}

func TestCandidatesBufferedUntilRemoteDescription(t *testing.T) {
	sig := &fakeSignal{}
	conn, err := New(webrtc.Configuration{}, "p1", sig)
	require.NoError(t, err)
	t.Cleanup(conn.Close)

	first := hostCandidate("54400")
	second := hostCandidate("54401")

	// No remote description yet: both are buffered in arrival order.
	require.NoError(t, conn.HandleRemoteCandidate(first))
	require.NoError(t, conn.HandleRemoteCandidate(second))
	buffered := conn.bufferedCandidates()
	require.Len(t, buffered, 2)
	assert.Equal(t, first.Candidate, buffered[0].Candidate)
	assert.Equal(t, second.Candidate, buffered[1].Candidate)

	// Answering the offer sets the remote description and drains the buffer.
	require.NoError(t, conn.HandleOffer(remoteOffer(t)))
	assert.Empty(t, conn.bufferedCandidates())
	assert.Contains(t, sig.types(t), protocol.TypeAnswer)

	// With the remote description in place candidates apply directly.
	require.NoError(t, conn.HandleRemoteCandidate(hostCandidate("54402")))
	assert.Empty(t, conn.bufferedCandidates())
}

func TestHandleOfferDroppedWhileOfferInFlight(t *testing.T) {
	sig := &fakeSignal{}
	conn, err := New(webrtc.Configuration{}, "p1", sig)
	require.NoError(t, err)
	t.Cleanup(conn.Close)

	conn.mu.Lock()
	conn.neg.OfferInFlight = true
	conn.mu.Unlock()

	require.NoError(t, conn.HandleOffer(remoteOffer(t)))
	assert.NotContains(t, sig.types(t), protocol.TypeAnswer)
	require.Nil(t, conn.pc.RemoteDescription())
}
