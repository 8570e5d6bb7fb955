package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Spok95/mini-hemis/internal/logging"
)

// KeepAlive — периодическая самопроверка: пинг хранилища и GET на собственный внешний адрес,
// чтобы хостинг не усыплял сервис.
type KeepAlive struct {
	url  string
	ping func(context.Context) error
	http *http.Client
	log  *zap.Logger
}

// NewKeepAlive: пустой url или nil ping — соответствующая проверка пропускается.
func NewKeepAlive(url string, ping func(context.Context) error, log *zap.Logger) *KeepAlive {
	return &KeepAlive{
		url:  url,
		ping: ping,
		http: &http.Client{Timeout: 10 * time.Second},
		log:  logging.OrNop(log).Named("keepalive"),
	}
}

// Enabled — есть ли что проверять.
func (k *KeepAlive) Enabled() bool { return k.url != "" || k.ping != nil }

// Job — для jobs.Runner.Every.
func (k *KeepAlive) Job(ctx context.Context) error {
	var errs []error
	if k.ping != nil {
		if err := k.ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("store ping: %w", err))
		}
	}
	if k.url != "" {
		if err := k.selfPing(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (k *KeepAlive) selfPing(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.url, nil)
	if err != nil {
		return fmt.Errorf("self ping: %w", err)
	}
	resp, err := k.http.Do(req)
	if err != nil {
		return fmt.Errorf("self ping: %w", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("self ping: status %d", resp.StatusCode)
	}
	k.log.Debug("self ping ok", zap.Int("status", resp.StatusCode))
	return nil
}
