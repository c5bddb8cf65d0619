package suggest

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

type retrying struct {
	next     Suggester
	attempts int
	backoff  time.Duration
}

// WithRetry retries temporary failures up to attempts times in total,
// doubling backoff between tries.
func WithRetry(next Suggester, attempts int, backoff time.Duration) Suggester {
	if attempts < 1 {
		attempts = 1
	}
	return &retrying{next: next, attempts: attempts, backoff: backoff}
}

func (r *retrying) Suggest(ctx context.Context, req Request) (string, error) {
	wait := r.backoff
	var err error
	for attempt := 1; ; attempt++ {
		var text string
		text, err = r.next.Suggest(ctx, req)
		if err == nil {
			return text, nil
		}

		var se *ServiceError
		if !errors.As(err, &se) || !se.Temporary() || attempt >= r.attempts {
			return "", err
		}

		zerolog.Ctx(ctx).Debug().Err(err).Int("attempt", attempt).Dur("backoff", wait).Msg("retrying suggestion")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
		wait *= 2
	}
}
