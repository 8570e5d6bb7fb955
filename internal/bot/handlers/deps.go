package handlers

import (
	"context"
	"time"

	"github.com/Spok95/mini-hemis/internal/models"
)

// ScheduleSource — часть academic.Service, нужная обработчикам.
type ScheduleSource interface {
	IdentityForChat(ctx context.Context, chatID int64) (models.Identity, error)
	GetScheduleForChat(ctx context.Context, chatID int64) ([]models.ScheduleEntry, error)
	Location() *time.Location
}
