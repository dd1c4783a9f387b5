package handlers

import (
	"errors"
	"net/http"
	"time"

	"grain-backend/internal/models"
	"grain-backend/internal/services"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	liveWriteWait  = 10 * time.Second
	livePongWait   = 60 * time.Second
	livePingPeriod = (livePongWait * 9) / 10
	liveMaxMessage = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// LiveMessage is pushed after every accepted or rejected field update
type LiveMessage struct {
	Record     *models.TransactionRecord  `json:"record,omitempty"`
	Settlement *models.SettlementResponse `json:"settlement,omitempty"`
	Error      string                     `json:"error,omitempty"`
}

// LiveHandler streams settlement previews while the operator types
type LiveHandler struct {
	forms      *services.FormService
	settlement *services.SettlementService
	logger     *zap.Logger
}

func NewLiveHandler(forms *services.FormService, settlement *services.SettlementService, logger *zap.Logger) *LiveHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LiveHandler{forms: forms, settlement: settlement, logger: logger}
}

// Serve handles GET /api/sessions/{id}/live
func (h *LiveHandler) Serve(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	sess, err := h.forms.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.String("session_id", id), zap.Error(err))
		return
	}
	defer conn.Close()

	conn.SetReadLimit(liveMaxMessage)
	conn.SetReadDeadline(time.Now().Add(livePongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(livePongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go h.ping(conn, done)

	if err := h.write(conn, h.preview(sess.Record)); err != nil {
		return
	}

	for {
		var upd models.FieldUpdate
		if err := conn.ReadJSON(&upd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("live channel closed", zap.String("session_id", id), zap.Error(err))
			}
			return
		}

		var msg LiveMessage
		next, applyErr := h.forms.Apply(id, []models.FieldUpdate{upd})
		if applyErr != nil {
			msg.Error = applyErr.Error()
		} else {
			msg = h.preview(next.Record)
		}
		if err := h.write(conn, msg); err != nil {
			return
		}
		if errors.Is(applyErr, services.ErrSessionNotFound) {
			return
		}
	}
}

func (h *LiveHandler) preview(rec models.TransactionRecord) LiveMessage {
	resp := h.settlement.Respond(rec)
	return LiveMessage{Record: &rec, Settlement: &resp}
}

// write serializes all writes through the read loop; ping only sends control frames
func (h *LiveHandler) write(conn *websocket.Conn, msg LiveMessage) error {
	conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
	return conn.WriteJSON(msg)
}

func (h *LiveHandler) ping(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(livePingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(liveWriteWait)); err != nil {
				return
			}
		}
	}
}
