// Package protocol defines the signal channel wire messages. Every message is
// a flat JSON object with a "type" discriminator.
package protocol

import (
	"encoding/json"

	"github.com/pion/webrtc/v4"

	"github.com/vkotx/gather/internal/core"
	"github.com/vkotx/gather/internal/domain"
)

const (
	TypeJoin         = "join"
	TypeRoomNotFound = "room-not-found"
	TypeRoomState    = "room-state"
	TypePeerJoined   = "peer-joined"
	TypePeerLeft     = "peer-left"
	TypePeerStream   = "peer-stream"
	TypeOffer        = "offer"
	TypeAnswer       = "answer"
	TypeICECandidate = "icecandidate"
	TypeReaction     = "reaction"
	TypeMessage      = "message"
)

type Envelope struct {
	Type string `json:"type"`
}

// Join is sent by a client to enter a room.
type Join struct {
	Type string `json:"type"`
	Name string `json:"name"`
	Room string `json:"roomId"`
}

type RoomNotFound struct {
	Type string `json:"type"`
	Room string `json:"roomId"`
}

// RoomState is the one-shot admission snapshot: existing peers, published
// stream owners and the full chat history, in that order.
type RoomState struct {
	Type         string               `json:"type"`
	Peers        []domain.PeerSummary `json:"peers"`
	StreamOwners []domain.StreamOwner `json:"streamOwners"`
	Messages     []domain.ChatItem    `json:"messages"`
}

type PeerJoined struct {
	Type  string        `json:"type"`
	ID    domain.PeerID `json:"id"`
	Name  string        `json:"name"`
	Index int           `json:"index"`
}

type PeerLeft struct {
	Type string        `json:"type"`
	ID   domain.PeerID `json:"id"`
}

// PeerStream announces a new publisher, at most once per (peer, stream).
type PeerStream struct {
	Type     string        `json:"type"`
	StreamID string        `json:"streamId"`
	PeerID   domain.PeerID `json:"peerId"`
}

// SessionDescription carries an offer or answer; Type doubles as the SDP type.
type SessionDescription struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

type ICECandidate struct {
	Type string `json:"type"`
	webrtc.ICECandidateInit
}

// Reaction carries a reaction tag. PeerID is filled by the server on the
// broadcast leg only.
type Reaction struct {
	Type     string        `json:"type"`
	Reaction string        `json:"reaction"`
	PeerID   domain.PeerID `json:"peerId,omitempty"`
}

// Chat is raw text from the client; the server stamps and broadcasts the
// structured item.
type Chat struct {
	Type       string        `json:"type"`
	Message    string        `json:"message"`
	AuthorID   domain.PeerID `json:"authorId,omitempty"`
	AuthorName string        `json:"authorName,omitempty"`
	TimeStamp  int64         `json:"timeStamp,omitempty"`
}

// Peek extracts the type discriminator without decoding the full payload.
func Peek(data []byte) (string, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", err
	}
	return env.Type, nil
}

// Encode marshals a message into a frame. Marshaling these value types cannot
// fail for any input the server constructs; errors are returned for the
// caller's log.
func Encode(v any) (core.Frame, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return core.Frame(b), nil
}
