package services

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	awspkg "github.com/T1collo/agrofresh/pkg/aws"
)

const (
	EventUserRegistered         = "user.registered"
	EventPasswordResetRequested = "user.password_reset_requested"
)

// EventPublisher announces account events to whatever listens downstream
// (mailers, analytics).
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload map[string]interface{}) error
}

type SNSEventPublisher struct {
	client   awspkg.SNSPublisher
	topicARN string
}

func NewSNSEventPublisher(client awspkg.SNSPublisher, topicARN string) *SNSEventPublisher {
	return &SNSEventPublisher{client: client, topicARN: topicARN}
}

func (p *SNSEventPublisher) Publish(ctx context.Context, eventType string, payload map[string]interface{}) error {
	body := make(map[string]interface{}, len(payload)+1)
	for k, v := range payload {
		body[k] = v
	}
	body["event_type"] = eventType

	msg, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}
	return p.client.Publish(ctx, p.topicARN, eventType, msg)
}

// LogEventPublisher is used when no SNS topic is configured.
type LogEventPublisher struct {
	logger *zap.Logger
}

func NewLogEventPublisher(logger *zap.Logger) *LogEventPublisher {
	return &LogEventPublisher{logger: logger}
}

func (p *LogEventPublisher) Publish(_ context.Context, eventType string, payload map[string]interface{}) error {
	fields := []zap.Field{zap.String("event_type", eventType)}
	if id, ok := payload["user_id"]; ok {
		fields = append(fields, zap.Any("user_id", id))
	}
	p.logger.Info("event not published: no topic configured", fields...)
	return nil
}
