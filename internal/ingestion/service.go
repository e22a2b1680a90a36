package ingestion

import (
	"context"
	"time"

	"inbox/internal/logger"
	"inbox/internal/messages"
	"inbox/internal/signature"
	pkgerrors "inbox/pkg/errors"
	"inbox/pkg/logging"
	"inbox/pkg/metrics"
)

// Outcome is the terminal state of one webhook request.
type Outcome struct {
	Result    string
	MessageID string
	Duplicate bool
}

// Pipeline runs the fixed ingestion order for one inbound event:
// verify signature, validate payload, insert idempotently, record the result
// metric exactly once. It short-circuits on the first failure; in particular
// an unauthenticated payload never reaches the parser or the store.
type Pipeline struct {
	secret          []byte
	repo            messages.Repository
	metrics         *metrics.Registry
	logger          logger.Logger
	now             func() time.Time
	secretAvailable bool
}

func NewPipeline(secret string, repo messages.Repository, reg *metrics.Registry, log logger.Logger) *Pipeline {
	return &Pipeline{
		secret:          []byte(secret),
		repo:            repo,
		metrics:         reg,
		logger:          log,
		now:             time.Now,
		secretAvailable: secret != "",
	}
}

// Process ingests one webhook event. rawBody must be the exact bytes
// received on the wire; re-serializing the decoded JSON would change the
// byte layout and break the signature.
func (p *Pipeline) Process(ctx context.Context, rawBody []byte, claimedSig string) (*Outcome, error) {
	if !p.secretAvailable || !signature.Verify(rawBody, claimedSig, p.secret) {
		p.metrics.RecordWebhookResult(metrics.ResultInvalidSignature)
		p.logger.InfowCtx(ctx, "Webhook rejected",
			"result", metrics.ResultInvalidSignature,
		)
		return nil, pkgerrors.ErrUnauthorized
	}

	msg, fieldErr := ParsePayload(rawBody)
	if fieldErr != nil {
		p.metrics.RecordWebhookResult(metrics.ResultValidationError)
		p.logger.InfowCtx(ctx, "Webhook rejected",
			"result", metrics.ResultValidationError,
			"field", fieldErr.Field,
			"reason", fieldErr.Reason,
		)
		return nil, pkgerrors.ErrValidation.
			WithDetail("field", fieldErr.Field).
			WithDetail("reason", fieldErr.Reason)
	}

	ctx = logging.WithMessageID(ctx, msg.MessageID)

	outcome, err := p.repo.Insert(ctx, &messages.Message{
		MessageID: msg.MessageID,
		From:      msg.From,
		To:        msg.To,
		Ts:        msg.Ts,
		Text:      msg.Text,
		CreatedAt: p.now().UTC(),
	})
	if err != nil {
		// Storage failure is the one exit with no webhook result label; the
		// HTTP request counter still records the 503. Surfaced retryable.
		p.logger.ErrorwCtx(ctx, "Webhook insert failed", "error", err)
		return nil, err
	}

	result := metrics.ResultCreated
	duplicate := false
	if outcome == messages.OutcomeAlreadyExists {
		result = metrics.ResultDuplicate
		duplicate = true
	}

	p.metrics.RecordWebhookResult(result)
	p.logger.InfowCtx(ctx, "Webhook processed",
		"result", result,
		"dup", duplicate,
	)

	return &Outcome{
		Result:    result,
		MessageID: msg.MessageID,
		Duplicate: duplicate,
	}, nil
}
