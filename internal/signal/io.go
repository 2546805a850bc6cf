package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/vkotx/gather/internal/protocol"
)

func (ctl *Controller) writePump(ctx context.Context, c *wsConn) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Warn().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.cfg.WriteTimeout)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

// readPump drives the connection's session. The signal channel disconnecting
// is the sole path that destroys a peer.
func (ctl *Controller) readPump(ctx context.Context, cancel context.CancelFunc, sid string, c *wsConn) {
	sess := &session{}
	defer func() {
		log.Info().Str("module", "signal").Str("sid", sid).Msg("readPump closing")
		if sess.peer != nil {
			sess.room.RemovePeer(sess.peer)
		}
		c.Close()
		cancel()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("sid", sid).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Info().Err(err).Str("module", "signal").Str("sid", sid).Msg("readPump read error")
				return
			}
			ctl.dispatch(sess, c, data)
		}
	}
}

func (ctl *Controller) sendJSON(c *wsConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}

func (ctl *Controller) dispatch(sess *session, c *wsConn, data []byte) {
	typ, err := protocol.Peek(data)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		return
	}

	if typ == protocol.TypeJoin {
		ctl.handleJoin(sess, c, data)
		return
	}
	if sess.peer == nil {
		log.Warn().Str("module", "signal").Str("type", typ).Msg("signal before join, ignoring")
		return
	}

	switch typ {
	case protocol.TypeOffer:
		ctl.handleOffer(sess, data)
	case protocol.TypeAnswer:
		ctl.handleAnswer(sess, data)
	case protocol.TypeICECandidate:
		ctl.handleCandidate(sess, data)
	case protocol.TypeReaction:
		ctl.handleReaction(sess, data)
	case protocol.TypeMessage:
		ctl.handleMessage(sess, data)
	default:
		log.Warn().Str("module", "signal").Str("type", typ).Msg("unknown signal")
	}
}
