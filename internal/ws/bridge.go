package ws

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// Notification is the wire payload published by the messages_notify trigger.
type Notification struct {
	AuthorUserID int64  `json:"author_user_id"`
	Content      string `json:"content"`
}

// ChannelName derives the Postgres notification channel for a conversation.
func ChannelName(conversationID uuid.UUID) string {
	return "conversation_" + conversationID.String()
}

// Bridge is a per-session subscription to one conversation's notification
// channel. It holds a dedicated Postgres connection for its whole lifetime:
// LISTEN cannot run on a pooled connection that is also serving queries, and
// this per-session connection is what bounds concurrent relay sessions.
type Bridge struct {
	conn          *pgx.Conn
	notifications chan Notification
	log           *zap.Logger
}

// NewBridge opens a listener connection and subscribes to the conversation's
// channel. The returned bridge delivers payloads until ctx is cancelled, the
// connection fails, or Close is called.
func NewBridge(ctx context.Context, dsn string, conversationID uuid.UUID, log *zap.Logger) (*Bridge, error) {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("bridge connect: %w", err)
	}

	channel := ChannelName(conversationID)
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize()); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("listen %s: %w", channel, err)
	}

	b := &Bridge{
		conn:          conn,
		notifications: make(chan Notification),
		log:           log,
	}
	go b.wait(ctx)
	return b, nil
}

func (b *Bridge) wait(ctx context.Context) {
	defer close(b.notifications)
	for {
		n, err := b.conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() == nil {
				b.log.Error("notification wait failed", zap.Error(err))
			}
			return
		}

		var note Notification
		if err := json.Unmarshal([]byte(n.Payload), &note); err != nil {
			// A malformed payload is skipped, not fatal.
			b.log.Error("malformed notification payload", zap.Error(err))
			continue
		}

		select {
		case b.notifications <- note:
		case <-ctx.Done():
			return
		}
	}
}

// Notifications yields decoded payloads. The channel closes when the
// subscription ends for any reason.
func (b *Bridge) Notifications() <-chan Notification { return b.notifications }

// Close releases the listener connection.
func (b *Bridge) Close(ctx context.Context) {
	_ = b.conn.Close(ctx)
}
