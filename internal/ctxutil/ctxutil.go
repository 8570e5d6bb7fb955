package ctxutil

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// приватные ключи, чтобы исключить коллизии
type key int

const (
	keyChatID key = iota
	keyLogin
	keyOpName
	keyRequestID
)

// WithChatID /ChatID — прокидываем chatID в контекст
func WithChatID(ctx context.Context, chatID int64) context.Context {
	return context.WithValue(ctx, keyChatID, chatID)
}

func ChatID(ctx context.Context) (int64, bool) {
	v := ctx.Value(keyChatID)
	if v == nil {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}

// WithLogin /Login — логин HEMIS, под которым идёт операция
func WithLogin(ctx context.Context, login string) context.Context {
	return context.WithValue(ctx, keyLogin, login)
}

func Login(ctx context.Context) (string, bool) {
	v := ctx.Value(keyLogin)
	if v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// WithOp /Op — имя операции (для логов/трейса)
func WithOp(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, keyOpName, name)
}

func Op(ctx context.Context) (string, bool) {
	v := ctx.Value(keyOpName)
	if v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// WithRequestID кладёт id запроса; пустой id генерируется.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.NewString()
	}
	return context.WithValue(ctx, keyRequestID, id)
}

func RequestID(ctx context.Context) (string, bool) {
	v := ctx.Value(keyRequestID)
	if v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// LogFields — поля для zap из того, что лежит в контексте.
func LogFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 4)
	if id, ok := RequestID(ctx); ok {
		fields = append(fields, zap.String("request_id", id))
	}
	if id, ok := ChatID(ctx); ok {
		fields = append(fields, zap.Int64("chat_id", id))
	}
	if login, ok := Login(ctx); ok {
		fields = append(fields, zap.String("login", login))
	}
	if op, ok := Op(ctx); ok {
		fields = append(fields, zap.String("op", op))
	}
	return fields
}

var DefaultDBTimeout = 5 * time.Second

// WithDBTimeout — стандартный таймаут для БД.
func WithDBTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	if dl, ok := parent.Deadline(); ok {
		// если у родителя осталось меньше DefaultDBTimeout — берем остаток
		remain := time.Until(dl)
		if remain < DefaultDBTimeout {
			return context.WithTimeout(parent, remain)
		}
	}
	return context.WithTimeout(parent, DefaultDBTimeout)
}
