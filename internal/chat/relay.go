package chat

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
)

const relayChannel = "chat:messages"

// PubSub is a cross-instance message bus
type PubSub interface {
	Enabled() bool
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string, handle func([]byte)) error
}

type relayEnvelope struct {
	GroupID string  `json:"group_id"`
	Message Message `json:"message"`
}

// Relay fans messages out through the bus so clients connected to any
// server instance receive them. Without a bus it delivers locally.
type Relay struct {
	hub    *Hub
	pubsub PubSub
	logger *zap.Logger
}

// NewRelay creates a relay; pubsub may be nil
func NewRelay(hub *Hub, pubsub PubSub, logger *zap.Logger) *Relay {
	return &Relay{hub: hub, pubsub: pubsub, logger: logger}
}

func (r *Relay) distributed() bool {
	return r.pubsub != nil && r.pubsub.Enabled()
}

// Start subscribes to the bus; a no-op when running without one
func (r *Relay) Start(ctx context.Context) error {
	if !r.distributed() {
		r.logger.Info("Chat relay running in local mode")
		return nil
	}

	return r.pubsub.Subscribe(ctx, relayChannel, func(payload []byte) {
		var env relayEnvelope
		if err := json.Unmarshal(payload, &env); err != nil {
			r.logger.Warn("Dropping malformed relay payload", zap.Error(err))
			return
		}
		r.hub.Broadcast(ctx, env.GroupID, env.Message)
	})
}

// Broadcast implements Broadcaster
func (r *Relay) Broadcast(ctx context.Context, groupID string, message Message) {
	if !r.distributed() {
		r.hub.Broadcast(ctx, groupID, message)
		return
	}

	payload, err := json.Marshal(relayEnvelope{GroupID: groupID, Message: message})
	if err == nil {
		err = r.pubsub.Publish(ctx, relayChannel, payload)
	}
	if err != nil {
		r.logger.Warn("Relay publish failed, delivering locally", zap.String("group_id", groupID), zap.Error(err))
		r.hub.Broadcast(ctx, groupID, message)
	}
}
