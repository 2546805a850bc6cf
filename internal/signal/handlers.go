package signal

import (
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/vkotx/gather/internal/domain"
	"github.com/vkotx/gather/internal/protocol"
	"github.com/vkotx/gather/internal/room"
)

func (ctl *Controller) handleJoin(sess *session, c *wsConn, data []byte) {
	var p protocol.Join
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad join payload")
		return
	}
	if sess.peer != nil {
		log.Warn().Str("module", "signal").Str("peer", string(sess.peer.ID)).Msg("already joined, ignoring")
		return
	}

	peer, rm, err := ctl.Registry.Join(domain.RoomID(p.Room), p.Name, c)
	if errors.Is(err, room.ErrRoomNotFound) {
		log.Info().Str("module", "signal").Str("room", p.Room).Msg("join: room not found")
		ctl.sendJSON(c, protocol.RoomNotFound{Type: protocol.TypeRoomNotFound, Room: p.Room})
		return
	}
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("room", p.Room).Msg("join rejected")
		return
	}

	sess.peer = peer
	sess.room = rm
	log.Info().Str("module", "signal").Str("peer", string(peer.ID)).Str("room", p.Room).Msg("joined")
}

func (ctl *Controller) handleOffer(sess *session, data []byte) {
	var p protocol.SessionDescription
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad offer payload")
		return
	}
	if err := sess.peer.Media.HandleOffer(p.SDP); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("peer", string(sess.peer.ID)).Msg("apply offer")
	}
}

func (ctl *Controller) handleAnswer(sess *session, data []byte) {
	var p protocol.SessionDescription
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad answer payload")
		return
	}
	if err := sess.peer.Media.HandleAnswer(p.SDP); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("peer", string(sess.peer.ID)).Msg("apply answer")
	}
}

func (ctl *Controller) handleCandidate(sess *session, data []byte) {
	var p protocol.ICECandidate
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad candidate payload")
		return
	}
	if err := sess.peer.Media.HandleRemoteCandidate(p.ICECandidateInit); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("peer", string(sess.peer.ID)).Msg("add ice candidate")
	}
}

func (ctl *Controller) handleReaction(sess *session, data []byte) {
	var p protocol.Reaction
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad reaction payload")
		return
	}
	if err := sess.room.HandleReaction(sess.peer, p.Reaction); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("reaction", p.Reaction).Msg("reaction rejected")
	}
}

func (ctl *Controller) handleMessage(sess *session, data []byte) {
	var p protocol.Chat
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad message payload")
		return
	}
	sess.room.HandleChat(sess.peer, p.Message)
}
