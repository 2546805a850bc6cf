package domain

// ChatItem is one chat message as stored in room history and broadcast on the
// wire. The author name is snapshotted at send time, not resolved live, so the
// item stays intact after its author leaves.
type ChatItem struct {
	AuthorID   PeerID `json:"authorId"`
	AuthorName string `json:"authorName"`
	Message    string `json:"message"`
	TimeStamp  int64  `json:"timeStamp"`
}

// PeerSummary is the read-only participant view sent in room-state snapshots.
type PeerSummary struct {
	ID         PeerID `json:"id"`
	Name       string `json:"name"`
	Index      int    `json:"index"`
	HandRaised bool   `json:"handRaised"`
}

// StreamOwner maps a published media stream to the peer that owns it.
type StreamOwner struct {
	StreamID string `json:"streamId"`
	PeerID   PeerID `json:"peerId"`
}
