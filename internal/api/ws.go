package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/you/swap-engine/internal/engine"
)

const (
	wsReadTimeout  = 90 * time.Second
	wsWriteTimeout = 10 * time.Second
)

// wsMessage is one reply on /ws/quote: either a quote or an error, tagged
// with the id the client sent.
type wsMessage struct {
	ID    string        `json:"id,omitempty"`
	Quote *SwapQuoteDTO `json:"quote,omitempty"`
	Error *ErrorDTO     `json:"error,omitempty"`
}

type wsRequest struct {
	ID string `json:"id"`
	SwapRequestDTO
}

// handleWS answers swap quote requests over one connection, one at a time.
// Every message is quoted fresh; nothing is pushed unasked.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("ws read error", zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

		reply := s.quoteMessage(ctx, raw)
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(reply); err != nil {
			s.log.Debug("ws write error", zap.Error(err))
			return
		}
	}
}

func (s *Server) quoteMessage(ctx context.Context, raw []byte) wsMessage {
	var in wsRequest
	if err := json.Unmarshal(raw, &in); err != nil {
		return wsMessage{Error: &ErrorDTO{Error: "bad message: " + err.Error(), Kind: engine.KindMalformed.String()}}
	}
	reply := wsMessage{ID: in.ID}
	req, err := in.SwapRequestDTO.ToRequest()
	if err == nil {
		qctx, cancel := context.WithTimeout(ctx, s.timeout)
		var sq *engine.SwapQuote
		sq, err = s.svc.QuoteSwap(qctx, req)
		cancel()
		if err == nil {
			dto := NewSwapQuoteDTO(sq)
			reply.Quote = &dto
			return reply
		}
	}
	kind := engine.Classify(err)
	reply.Error = &ErrorDTO{Error: err.Error(), Kind: kind.String()}
	return reply
}
