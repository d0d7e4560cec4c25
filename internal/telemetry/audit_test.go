package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"engagement-service/internal/mocks"
)

func TestEmitPublishesEnvelope(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	publisher.On("Publish", mock.Anything, "audit.engagement", mock.MatchedBy(func(event any) bool {
		envelope, ok := event.(AuditEnvelope)
		if !ok {
			return false
		}
		return envelope.EventType == "audit_log" &&
			envelope.Service == "engagement-service" &&
			envelope.Payload.Text == "awarded 10 points for create_store"
	})).Return(nil)

	emitter := NewAuditEmitter(publisher, "audit.engagement", "engagement-service", "test")
	userID := "1"
	emitter.Emit(context.Background(), "INFO", "awarded 10 points for create_store", "req-1", &userID)

	publisher.AssertExpectations(t)
}

func TestEmitSwallowsPublishError(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	publisher.On("Publish", mock.Anything, "audit.engagement", mock.Anything).
		Return(assert.AnError)

	emitter := NewAuditEmitter(publisher, "audit.engagement", "engagement-service", "test")
	emitter.Emit(context.Background(), "ERROR", "boom", "req-2", nil)

	publisher.AssertExpectations(t)
}

func TestEmitNilEmitterIsNoop(t *testing.T) {
	var emitter *AuditEmitter
	require.NotPanics(t, func() {
		emitter.Emit(context.Background(), "INFO", "ignored", "req-3", nil)
	})
}
