package model

import (
	"context"
	"errors"
	"time"
)

// Retrying wraps a ChatModel and repeats calls that fail with a retryable
// *Error. Rate-limit failures back off linearly in the attempt number.
type Retrying struct {
	Model      ChatModel
	MaxRetries int
	Delay      time.Duration
}

// WithRetry wraps m with three retries one second apart.
func WithRetry(m ChatModel) *Retrying {
	return &Retrying{Model: m, MaxRetries: 3, Delay: time.Second}
}

// Chat implements ChatModel.
func (r *Retrying) Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error) {
	var lastErr error
	for attempt := 0; attempt <= r.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return ChatOut{}, err
		}
		out, err := r.Model.Chat(ctx, messages, tools)
		if err == nil {
			return out, nil
		}
		lastErr = err

		var me *Error
		if !errors.As(err, &me) || !me.Retryable() || attempt == r.MaxRetries {
			break
		}

		delay := r.Delay
		if me.Kind == KindRateLimited {
			delay = r.Delay * time.Duration(attempt+1)
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ChatOut{}, ctx.Err()
		}
	}
	return ChatOut{}, lastErr
}
