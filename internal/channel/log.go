package channel

import (
	"context"

	"github.com/dhima/followup-engine/internal/models"
	"github.com/dhima/followup-engine/pkg/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const logChannelName = "log"

// LogChannel writes rendered follow-ups to the logger instead of delivering
// them. It backs local runs where no broker is configured.
type LogChannel struct {
	clock  clock.Clock
	logger *zap.Logger
}

func NewLogChannel(logger *zap.Logger) *LogChannel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogChannel{clock: clock.RealClock{}, logger: logger.With(zap.String("channel", logChannelName))}
}

func (c *LogChannel) Send(ctx context.Context, msg models.RenderedMessage, contact models.Contact) (*models.DeliveryReceipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ref := uuid.NewString()
	c.logger.Info("follow-up delivered",
		zap.String("followup_id", msg.FollowUpID),
		zap.String("contact_id", contact.ID),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("delivery_ref", ref))
	return &models.DeliveryReceipt{DeliveryRef: ref, Channel: logChannelName, AcceptedAt: c.clock.Now().UTC()}, nil
}
