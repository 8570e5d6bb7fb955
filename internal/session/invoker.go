package session

import (
	"context"
	"errors"

	"github.com/Spok95/mini-hemis/internal/ctxutil"
	"github.com/Spok95/mini-hemis/internal/hemis"
	"github.com/Spok95/mini-hemis/internal/metrics"
)

// Operation — один вызов HEMIS с токеном.
type Operation[T any] func(ctx context.Context, token string) (T, error)

// Invoke выполняет op с токеном логина. Если HEMIS отверг токен (hemis.ErrUnauthorized),
// токен обновляется и op повторяется ровно один раз. Больше двух вызовов op не бывает;
// второй отказ возвращается вызывающему как есть.
func Invoke[T any](ctx context.Context, tokens TokenSource, login string, op Operation[T]) (T, error) {
	var zero T
	ctx = ctxutil.WithLogin(ctx, login)

	token, err := tokens.GetToken(ctx, login)
	if err != nil {
		return zero, err
	}
	res, err := op(ctx, token)
	if !errors.Is(err, hemis.ErrUnauthorized) {
		return res, err
	}

	metrics.InvokeRetries.Inc()
	token, err = tokens.ForceRefresh(ctx, login)
	if err != nil {
		return zero, err
	}
	res, err = op(ctx, token)
	if errors.Is(err, hemis.ErrUnauthorized) {
		metrics.InvokeTerminalUnauthorized.Inc()
	}
	return res, err
}
