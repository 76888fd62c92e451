package llm

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type operationKey struct{}

// WithOperation tags calls made with ctx, e.g. OperationSummary.
func WithOperation(ctx context.Context, op string) context.Context {
	return context.WithValue(ctx, operationKey{}, op)
}

func operationOf(ctx context.Context) string {
	if op, ok := ctx.Value(operationKey{}).(string); ok {
		return op
	}
	return "untagged"
}

// FailureCounter is told about every failed call. *metrics.Metrics
// satisfies it.
type FailureCounter interface {
	ProviderFailure(operation string)
}

type observed struct {
	next     Provider
	log      *zap.Logger
	failures FailureCounter
}

// Observed logs each call with its operation and latency and counts the
// failures.
func Observed(p Provider, log *zap.Logger, failures FailureCounter) Provider {
	if log == nil {
		log = zap.NewNop()
	}
	return &observed{next: p, log: log, failures: failures}
}

func (o *observed) Complete(ctx context.Context, p Prompt) (*Completion, error) {
	op := operationOf(ctx)
	began := time.Now()
	c, err := o.next.Complete(ctx, p)

	log := o.log.With(
		zap.String("model", o.next.Model()),
		zap.String("operation", op),
		zap.Duration("took", time.Since(began)),
	)
	if err != nil {
		if o.failures != nil {
			o.failures.ProviderFailure(op)
		}
		log.Warn("llm call failed", zap.Stringer("failure", FailureOf(err)), zap.Error(err))
		return nil, err
	}
	log.Debug("llm call", zap.Int("prompt_tokens", c.Tokens.Prompt), zap.Int("reply_tokens", c.Tokens.Reply))
	return c, nil
}

func (o *observed) Model() string {
	return o.next.Model()
}
