// Package domain contains entities without logic, just meta-data.
package domain

import "github.com/google/uuid"

type (
	// PeerID identifies one participant's server-side signaling identity.
	PeerID string
	// RoomID is the six-digit numeric code participants join by.
	RoomID string
)

func NewPeerID() PeerID {
	return PeerID(uuid.NewString())
}
