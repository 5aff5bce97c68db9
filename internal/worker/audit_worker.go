package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/onboarding-portal/internal/events"
	"github.com/spec-kit/onboarding-portal/internal/observability"
)

// AuditedEvents are the session events the audit worker records.
var AuditedEvents = []events.EventType{
	events.EventSessionReset,
	events.EventSignedIn,
	events.EventSignedOut,
	events.EventOnboardingStepCompleted,
	events.EventOnboardingCompleted,
}

// StartAuditWorker subscribes handlers that log and count session events.
func StartAuditWorker(dispatcher events.Dispatcher, metrics *observability.Metrics, logger *zap.Logger) {
	if dispatcher == nil {
		return
	}
	handler := auditHandler(metrics, logger)
	for _, eventType := range AuditedEvents {
		dispatcher.Subscribe(eventType, handler)
	}
}

func auditHandler(metrics *observability.Metrics, logger *zap.Logger) events.EventHandler {
	return func(_ context.Context, event events.Event) error {
		metrics.RecordEvent(string(event.Type))
		fields := []zap.Field{
			zap.String("event_id", event.ID),
			zap.String("type", string(event.Type)),
			zap.String("session_id", event.SessionID),
			zap.Time("at", event.Timestamp),
		}
		switch p := event.Payload.(type) {
		case events.SessionResetPayload:
			logger.Warn("session reset", append(fields, zap.String("location", p.Location), zap.String("target", p.Target))...)
		case events.SignedInPayload:
			logger.Info("session event", append(fields, zap.String("user_id", p.UserID))...)
		case events.OnboardingStepPayload:
			logger.Info("session event", append(fields, zap.String("flow", p.Flow), zap.String("step", p.Step), zap.Int("next_step", p.NextStep))...)
		case events.OnboardingCompletedPayload:
			logger.Info("session event", append(fields, zap.String("flow", p.Flow))...)
		default:
			logger.Info("session event", fields...)
		}
		return nil
	}
}
