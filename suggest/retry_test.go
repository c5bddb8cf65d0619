package suggest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scripted struct {
	errs  []error
	calls int
}

func (s *scripted) Suggest(context.Context, Request) (string, error) {
	s.calls++
	if len(s.errs) >= s.calls {
		if err := s.errs[s.calls-1]; err != nil {
			return "", err
		}
	}
	return "ok", nil
}

func TestWithRetry(t *testing.T) {
	t.Run("recovers from temporary failures", func(t *testing.T) {
		inner := &scripted{errs: []error{&ServiceError{Kind: RateLimited}, &ServiceError{Kind: NetworkFailure}}}
		text, err := WithRetry(inner, 3, time.Millisecond).Suggest(context.Background(), Request{})
		require.NoError(t, err)
		assert.Equal(t, "ok", text)
		assert.Equal(t, 3, inner.calls)
	})

	t.Run("gives up after attempts", func(t *testing.T) {
		inner := &scripted{errs: []error{&ServiceError{Kind: RateLimited}, &ServiceError{Kind: RateLimited}}}
		_, err := WithRetry(inner, 2, time.Millisecond).Suggest(context.Background(), Request{})
		assert.True(t, IsKind(err, RateLimited))
		assert.Equal(t, 2, inner.calls)
	})

	t.Run("auth failures are final", func(t *testing.T) {
		inner := &scripted{errs: []error{&ServiceError{Kind: AuthFailed}}}
		_, err := WithRetry(inner, 5, time.Millisecond).Suggest(context.Background(), Request{})
		assert.True(t, IsKind(err, AuthFailed))
		assert.Equal(t, 1, inner.calls)
	})

	t.Run("stops waiting on cancel", func(t *testing.T) {
		inner := &scripted{errs: []error{&ServiceError{Kind: RateLimited}}}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		_, err := WithRetry(inner, 3, time.Hour).Suggest(ctx, Request{})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, 1, inner.calls)
	})
}
