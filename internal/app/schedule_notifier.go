package app

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Spok95/mini-hemis/internal/academic"
	"github.com/Spok95/mini-hemis/internal/bot/handlers"
	"github.com/Spok95/mini-hemis/internal/logging"
	"github.com/Spok95/mini-hemis/internal/metrics"
	"github.com/Spok95/mini-hemis/internal/observability"
	"github.com/Spok95/mini-hemis/internal/tg"
)

// NotifierSource — подписчики и их расписание.
type NotifierSource interface {
	handlers.ScheduleSource
	Subscribers(ctx context.Context) ([]int64, error)
}

// ScheduleNotifier рассылает расписание на день всем привязанным чатам.
type ScheduleNotifier struct {
	bot         tg.Bot
	src         NotifierSource
	parallelism int
	log         *zap.Logger
	now         func() time.Time
}

func NewScheduleNotifier(bot tg.Bot, src NotifierSource, parallelism int, log *zap.Logger) *ScheduleNotifier {
	if parallelism <= 0 {
		parallelism = 1
	}
	return &ScheduleNotifier{
		bot:         bot,
		src:         src,
		parallelism: parallelism,
		log:         logging.OrNop(log).Named("notifier"),
		now:         time.Now,
	}
}

// NotifyResult — итог одной рассылки.
type NotifyResult struct {
	Subscribers int
	Sent        int
	Failed      int
}

// Run — одна рассылка. Ошибка одного чата не останавливает остальные;
// ошибкой заканчивается только получение списка подписчиков.
func (n *ScheduleNotifier) Run(ctx context.Context) (NotifyResult, error) {
	chatIDs, err := n.src.Subscribers(ctx)
	if err != nil {
		metrics.NotifyFailed.WithLabelValues("subscribers").Inc()
		return NotifyResult{}, err
	}
	res := NotifyResult{Subscribers: len(chatIDs)}
	if len(chatIDs) == 0 {
		n.log.Info("no subscribers, skipping daily schedule")
		return res, nil
	}

	now := n.now()
	var sent, failed atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(n.parallelism)
	for _, chatID := range chatIDs {
		chatID := chatID
		g.Go(func() error {
			if err := n.notifyChat(gctx, chatID, now); err != nil {
				failed.Add(1)
				return nil
			}
			sent.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	res.Sent, res.Failed = int(sent.Load()), int(failed.Load())
	n.log.Info("daily schedule sent",
		zap.Int("subscribers", res.Subscribers),
		zap.Int("sent", res.Sent),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}

// Job — обёртка для jobs.Runner.
func (n *ScheduleNotifier) Job(ctx context.Context) error {
	_, err := n.Run(ctx)
	return err
}

func (n *ScheduleNotifier) notifyChat(ctx context.Context, chatID int64, now time.Time) error {
	entries, err := n.src.GetScheduleForChat(ctx, chatID)
	if err != nil {
		metrics.NotifyFailed.WithLabelValues("schedule").Inc()
		n.log.Warn("schedule for subscriber", zap.Int64("chat_id", chatID), zap.Error(err))
		if !academic.IsUserError(err) {
			observability.CaptureErrWith(err, map[string]string{"chat_id": fmt.Sprint(chatID), "op": "daily_schedule"})
		}
		return err
	}
	text := handlers.TodayMessage(entries, now, n.src.Location())
	if _, err := tg.SendHTML(n.bot, chatID, text); err != nil {
		metrics.NotifyFailed.WithLabelValues("send").Inc()
		n.log.Warn("send daily schedule", zap.Int64("chat_id", chatID), zap.Error(err))
		return err
	}
	metrics.NotifySent.Inc()
	return nil
}
