package hemis

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/Spok95/mini-hemis/internal/metrics"
)

// EndpointClass — группа эндпоинтов с общим минимальным интервалом.
type EndpointClass string

const (
	ClassAuth EndpointClass = "auth"
	ClassData EndpointClass = "data"
)

// ThrottleConfig — минимальный интервал между запросами одного класса. 0 — без ограничения.
type ThrottleConfig struct {
	Auth time.Duration
	Data time.Duration
}

// Throttle выдерживает паузу между запросами одного класса на весь процесс.
type Throttle struct {
	limiters map[EndpointClass]*rate.Limiter
}

func NewThrottle(cfg ThrottleConfig) *Throttle {
	t := &Throttle{limiters: make(map[EndpointClass]*rate.Limiter)}
	if cfg.Auth > 0 {
		t.limiters[ClassAuth] = rate.NewLimiter(rate.Every(cfg.Auth), 1)
	}
	if cfg.Data > 0 {
		t.limiters[ClassData] = rate.NewLimiter(rate.Every(cfg.Data), 1)
	}
	return t
}

// Wait блокирует до разрешённого момента. Отмена ctx прерывает только ожидание, не запрос.
func (t *Throttle) Wait(ctx context.Context, class EndpointClass) error {
	if t == nil {
		return nil
	}
	l, ok := t.limiters[class]
	if !ok {
		return nil
	}
	start := time.Now()
	err := l.Wait(ctx)
	metrics.ThrottleWait.WithLabelValues(string(class)).Observe(time.Since(start).Seconds())
	return err
}
