package sfu

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vkotx/gather/internal/core"
	"github.com/vkotx/gather/internal/domain"
)

type fakeWriter struct {
	mu   sync.Mutex
	got  []*rtp.Packet
	fail bool
}

func (w *fakeWriter) WriteRTP(p *rtp.Packet) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail {
		return errors.New("write failed")
	}
	w.got = append(w.got, p)
	return nil
}

func (w *fakeWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.got)
}

type fakeTrack struct {
	id       string
	streamID string
}

func (f *fakeTrack) ID() string       { return f.id }
func (f *fakeTrack) StreamID() string { return f.streamID }

func (f *fakeTrack) Codec() webrtc.RTPCodecParameters {
	return webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{
			MimeType:  webrtc.MimeTypeOpus,
			ClockRate: 48000,
			Channels:  2,
		},
	}
}

func (f *fakeTrack) ReadRTP() (*rtp.Packet, interceptor.Attributes, error) {
	return nil, nil, io.EOF
}

type fakeMedia struct {
	mu      sync.Mutex
	failAdd bool
	tracks  []*webrtc.TrackLocalStaticRTP
}

func (f *fakeMedia) Start(context.Context) error                         { return nil }
func (f *fakeMedia) Close()                                              {}
func (f *fakeMedia) HandleOffer(string) error                            { return nil }
func (f *fakeMedia) HandleAnswer(string) error                           { return nil }
func (f *fakeMedia) HandleRemoteCandidate(webrtc.ICECandidateInit) error { return nil }
func (f *fakeMedia) OnTrack(func(context.Context, core.RemoteTrack))     {}

func (f *fakeMedia) AddLocalTrack(track *webrtc.TrackLocalStaticRTP) (*webrtc.RTPSender, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAdd {
		return nil, errors.New("sender rejected")
	}
	f.tracks = append(f.tracks, track)
	return nil, nil
}

func (f *fakeMedia) trackCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tracks)
}

func TestRelayForward(t *testing.T) {
	logger := zerolog.Nop()
	relay := NewRelay(&fakeTrack{id: "t1", streamID: "s1"}, nil)

	w := &fakeWriter{}
	require.True(t, relay.AddOutTrack("bob", NewOutTrack(w)))
	// Subscribing twice is an explicit no-op.
	require.False(t, relay.AddOutTrack("bob", NewOutTrack(&fakeWriter{})))

	pkt := &rtp.Packet{}
	relay.forward(pkt, &logger)
	assert.Equal(t, 1, w.count())
}

func TestRelayDropsFailingWriter(t *testing.T) {
	logger := zerolog.Nop()
	relay := NewRelay(&fakeTrack{id: "t1", streamID: "s1"}, nil)

	bad := &fakeWriter{fail: true}
	good := &fakeWriter{}
	relay.AddOutTrack("bad", NewOutTrack(bad))
	relay.AddOutTrack("good", NewOutTrack(good))

	relay.forward(&rtp.Packet{}, &logger)
	assert.Equal(t, 1, good.count())
	assert.False(t, relay.HasSubscriber("bad"), "failed writer must be removed")
	assert.True(t, relay.HasSubscriber("good"))
}

func TestRelayDropSubscriber(t *testing.T) {
	logger := zerolog.Nop()
	relay := NewRelay(&fakeTrack{id: "t1", streamID: "s1"}, nil)

	w := &fakeWriter{}
	relay.AddOutTrack("bob", NewOutTrack(w))
	relay.DropSubscriber("bob")

	relay.forward(&rtp.Packet{}, &logger)
	assert.Zero(t, w.count())
	assert.False(t, relay.HasSubscriber("bob"))
}

func TestManagerSubscribe(t *testing.T) {
	m := NewManager()
	alice := domain.PeerID("alice")
	bob := domain.PeerID("bob")

	media := &fakeMedia{}

	// Nothing published yet.
	m.Subscribe(alice, bob, media)
	assert.Zero(t, media.trackCount())

	m.Publish(context.Background(), alice, &fakeTrack{id: "t1", streamID: "s1"})
	m.Subscribe(alice, bob, media)
	assert.Equal(t, 1, media.trackCount())

	// Already-forwarded tracks are skipped.
	m.Subscribe(alice, bob, media)
	assert.Equal(t, 1, media.trackCount())

	// A peer never subscribes to itself.
	m.Subscribe(alice, alice, media)
	assert.Equal(t, 1, media.trackCount())
}

// Joining while the owner is publishing subscribes from two directions at
// once; the destination must end up with exactly one sender per track.
func TestManagerConcurrentSubscribeAttachesOnce(t *testing.T) {
	m := NewManager()
	alice := domain.PeerID("alice")
	bob := domain.PeerID("bob")
	media := &fakeMedia{}

	m.Publish(context.Background(), alice, &fakeTrack{id: "t1", streamID: "s1"})

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				m.Subscribe(alice, bob, media)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, media.trackCount())
}

func TestManagerSubscribeReleasesSlotOnAttachFailure(t *testing.T) {
	m := NewManager()
	alice := domain.PeerID("alice")
	bob := domain.PeerID("bob")

	m.Publish(context.Background(), alice, &fakeTrack{id: "t1", streamID: "s1"})
	m.Subscribe(alice, bob, &fakeMedia{failAdd: true})

	// The failed attach must not leave a claimed slot behind.
	good := &fakeMedia{}
	m.Subscribe(alice, bob, good)
	assert.Equal(t, 1, good.trackCount())
}

func TestManagerPublishIsIdempotentPerTrack(t *testing.T) {
	m := NewManager()
	alice := domain.PeerID("alice")
	bob := domain.PeerID("bob")
	media := &fakeMedia{}

	track := &fakeTrack{id: "t1", streamID: "s1"}
	m.Publish(context.Background(), alice, track)
	m.Subscribe(alice, bob, media)
	m.Publish(context.Background(), alice, track)
	m.Subscribe(alice, bob, media)
	assert.Equal(t, 1, media.trackCount())
}

func TestManagerStopOwner(t *testing.T) {
	m := NewManager()
	alice := domain.PeerID("alice")
	bob := domain.PeerID("bob")
	media := &fakeMedia{}

	m.Publish(context.Background(), alice, &fakeTrack{id: "t1", streamID: "s1"})
	m.StopOwner(alice)

	m.Subscribe(alice, bob, media)
	assert.Zero(t, media.trackCount())
}
