package domain

import (
	"context"

	pipeline "media_pipeline/internal/pipeline/domain"
)

// Sink delivers one notification event somewhere the owner can see it
type Sink interface {
	Name() string
	Deliver(ctx context.Context, ev pipeline.NotificationEvent) error
}

// WSMessage is pushed to websocket clients
type WSMessage struct {
	Type  string                     `json:"type"`
	Event pipeline.NotificationEvent `json:"event"`
}

// WSTypeConversion marks a conversion outcome message
const WSTypeConversion = "conversion"
