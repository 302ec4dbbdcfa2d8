package usecase

import (
	"context"

	"github.com/saurav-sabu/RepoScribe/internal/domain"
)

// publishEvent publishes on bus when one is configured.
func publishEvent(bus domain.EventBus, ctx context.Context, eventType domain.EventType, sessionID string, payload any) {
	if bus == nil {
		return
	}
	bus.Publish(ctx, domain.NewEvent(eventType, sessionID, payload))
}
