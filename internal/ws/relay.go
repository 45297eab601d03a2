// Package ws implements the realtime relay: one session per WebSocket
// connection, multiplexing inbound client frames and the conversation's
// Postgres notification channel onto a single socket.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pairchat/server/internal/middleware"
	"go.uber.org/zap"
)

// Store is the slice of the persistence layer the relay needs: the
// participation guard for authorization and the append path for inbound frames.
type Store interface {
	IsParticipant(ctx context.Context, conversationID uuid.UUID, userID int64) (bool, error)
	AppendMessage(ctx context.Context, conversationID uuid.UUID, userID int64, content string) error
}

// notificationSource abstracts the bridge so session tests can inject events.
type notificationSource interface {
	Notifications() <-chan Notification
	Close(ctx context.Context)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Relay authorizes WebSocket upgrades and runs one session per connection.
type Relay struct {
	store   Store
	log     *zap.Logger
	connect func(ctx context.Context, conversationID uuid.UUID) (notificationSource, error)
}

// NewRelay builds a relay whose sessions subscribe via dedicated listener
// connections to dsn.
func NewRelay(store Store, dsn string, log *zap.Logger) *Relay {
	return &Relay{
		store: store,
		log:   log,
		connect: func(ctx context.Context, conversationID uuid.UUID) (notificationSource, error) {
			return NewBridge(ctx, dsn, conversationID, log)
		},
	}
}

// ServeWS authorizes the upgrade request and, on success, upgrades the socket
// and runs the session until it closes. Any authorization failure terminates
// before the upgrade: the socket is never opened on failure.
func (r *Relay) ServeWS(w http.ResponseWriter, req *http.Request) {
	userID, ok := middleware.UserID(req.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "Missing or invalid session")
		return
	}

	rawID := req.URL.Query().Get("conversationId")
	if rawID == "" {
		writeError(w, http.StatusBadRequest, "invalid_argument", "Conversation ID not provided")
		return
	}
	conversationID, err := uuid.Parse(rawID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_argument", "Invalid conversation ID")
		return
	}

	isParticipant, err := r.store.IsParticipant(req.Context(), conversationID, userID)
	if err != nil {
		r.log.Error("failed to verify conversation participant",
			zap.Error(err), zap.Int64("user_id", userID), zap.String("conversation_id", conversationID.String()))
		writeError(w, http.StatusInternalServerError, "internal", "Failed to verify conversation participant")
		return
	}
	if !isParticipant {
		writeError(w, http.StatusForbidden, "permission_denied", "Not authorized for this conversation")
		return
	}

	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		// Upgrade already wrote the handshake error response.
		r.log.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(req.Context())
	defer cancel()
	defer conn.Close()

	source, err := r.connect(ctx, conversationID)
	if err != nil {
		r.log.Error("failed to open notification bridge",
			zap.Error(err), zap.String("conversation_id", conversationID.String()))
		return
	}
	defer source.Close(context.WithoutCancel(ctx))

	session := &Session{
		conversationID: conversationID,
		userID:         userID,
		conn:           conn,
		store:          r.store,
		notifications:  source.Notifications(),
		log: r.log.With(
			zap.Int64("user_id", userID),
			zap.String("conversation_id", conversationID.String()),
		),
	}
	session.Run(ctx)
}

// Session is the per-connection state machine. It owns the socket and one
// bridge subscription; both are released by ServeWS on every exit path.
type Session struct {
	conversationID uuid.UUID
	userID         int64
	conn           *websocket.Conn
	store          Store
	notifications  <-chan Notification
	log            *zap.Logger
}

type frame struct {
	messageType int
	data        []byte
	err         error
}

// Run loops until the socket closes, an I/O error occurs, a persist fails, or
// the bridge ends. There is no reconnect: a dropped connection requires a
// fresh handshake and fresh authorization.
func (s *Session) Run(ctx context.Context) {
	frames := make(chan frame)
	go s.readPump(ctx, frames)

	for {
		select {
		case f := <-frames:
			if f.err != nil {
				if websocket.IsUnexpectedCloseError(f.err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					s.log.Warn("websocket read failed", zap.Error(f.err))
				}
				return
			}
			if f.messageType != websocket.TextMessage {
				continue
			}
			content := strings.TrimSpace(string(f.data))
			if content == "" {
				continue
			}
			// The insert trigger publishes to all subscribed sessions.
			if err := s.store.AppendMessage(ctx, s.conversationID, s.userID, content); err != nil {
				// A session that cannot persist is not useful to keep alive.
				s.log.Error("failed to persist message", zap.Error(err))
				return
			}

		case note, ok := <-s.notifications:
			if !ok {
				return
			}
			if note.AuthorUserID == s.userID {
				// The author already knows what they sent.
				continue
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, []byte(note.Content)); err != nil {
				s.log.Warn("websocket write failed", zap.Error(err))
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

func (s *Session) readPump(ctx context.Context, frames chan<- frame) {
	for {
		messageType, data, err := s.conn.ReadMessage()
		f := frame{messageType: messageType, data: data, err: err}
		select {
		case frames <- f:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"code": code, "message": message})
}
