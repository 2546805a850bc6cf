package room

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/require"

	"github.com/vkotx/gather/internal/core"
	"github.com/vkotx/gather/internal/protocol"
)

type fakeSignal struct {
	mu     sync.Mutex
	frames []core.Frame
	closed bool
}

func (f *fakeSignal) TrySend(fr core.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, fr)
	return nil
}

func (f *fakeSignal) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

// ofType returns the received frames carrying the given type discriminator.
func (f *fakeSignal) ofType(t *testing.T, typ string) []core.Frame {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []core.Frame
	for _, fr := range f.frames {
		got, err := protocol.Peek(fr)
		require.NoError(t, err)
		if got == typ {
			out = append(out, fr)
		}
	}
	return out
}

type fakeMedia struct {
	mu          sync.Mutex
	onTrack     func(context.Context, core.RemoteTrack)
	localTracks []*webrtc.TrackLocalStaticRTP
	closed      bool
}

func (f *fakeMedia) Start(context.Context) error { return nil }

func (f *fakeMedia) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeMedia) HandleOffer(string) error                           { return nil }
func (f *fakeMedia) HandleAnswer(string) error                          { return nil }
func (f *fakeMedia) HandleRemoteCandidate(webrtc.ICECandidateInit) error { return nil }

func (f *fakeMedia) AddLocalTrack(track *webrtc.TrackLocalStaticRTP) (*webrtc.RTPSender, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.localTracks = append(f.localTracks, track)
	return nil, nil
}

func (f *fakeMedia) OnTrack(fn func(ctx context.Context, track core.RemoteTrack)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onTrack = fn
}

func (f *fakeMedia) trackCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.localTracks)
}

func (f *fakeMedia) fireTrack(track core.RemoteTrack) {
	f.mu.Lock()
	fn := f.onTrack
	f.mu.Unlock()
	if fn != nil {
		fn(context.Background(), track)
	}
}

type fakeRemoteTrack struct {
	id       string
	streamID string
}

func (f *fakeRemoteTrack) ID() string       { return f.id }
func (f *fakeRemoteTrack) StreamID() string { return f.streamID }

func (f *fakeRemoteTrack) Codec() webrtc.RTPCodecParameters {
	return webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{
			MimeType:  webrtc.MimeTypeOpus,
			ClockRate: 48000,
			Channels:  2,
		},
	}
}

func (f *fakeRemoteTrack) ReadRTP() (*rtp.Packet, interceptor.Attributes, error) {
	return nil, nil, io.EOF
}

func decodeAs[T any](t *testing.T, frame core.Frame) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(frame, &v))
	return v
}
