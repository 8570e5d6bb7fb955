package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/Spok95/mini-hemis/internal/ctxutil"
	"github.com/Spok95/mini-hemis/internal/models"
)

// IdentityStore — учётки HEMIS в Postgres.
type IdentityStore struct {
	db *sqlx.DB
}

func NewIdentityStore(database *sqlx.DB) *IdentityStore {
	return &IdentityStore{db: database}
}

const identityColumns = `id, hemis_login, hemis_password, hemis_token, full_name, role, group_name, telegram_chat_id, created_at, updated_at`

func (s *IdentityStore) ReadCredential(ctx context.Context, login string) (models.Credential, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	var c models.Credential
	err := s.db.GetContext(ctx, &c, `SELECT hemis_login, hemis_password, hemis_token FROM identities WHERE hemis_login = $1`, login)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Credential{}, models.ErrIdentityNotFound
	}
	if err != nil {
		return models.Credential{}, fmt.Errorf("read credential %s: %w", login, err)
	}
	return c, nil
}

func (s *IdentityStore) WriteToken(ctx context.Context, login, token string) error {
	return s.setToken(ctx, login, &token)
}

func (s *IdentityStore) ClearToken(ctx context.Context, login string) error {
	return s.setToken(ctx, login, nil)
}

func (s *IdentityStore) setToken(ctx context.Context, login string, token *string) error {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `UPDATE identities SET hemis_token = $2, updated_at = now() WHERE hemis_login = $1`, login, token)
	if err != nil {
		return fmt.Errorf("set token %s: %w", login, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return models.ErrIdentityNotFound
	}
	return nil
}

// UpsertIdentity создаёт учётку или обновляет пароль, токен и данные профиля. Чат не трогает.
func (s *IdentityStore) UpsertIdentity(ctx context.Context, idn models.Identity) (models.Identity, error) {
	if !idn.Role.Valid() {
		return models.Identity{}, fmt.Errorf("upsert identity %s: invalid role %q", idn.Login, idn.Role)
	}
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	var out models.Identity
	err := s.db.GetContext(ctx, &out, `
		INSERT INTO identities (hemis_login, hemis_password, hemis_token, full_name, role, group_name)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (hemis_login) DO UPDATE SET
			hemis_password = EXCLUDED.hemis_password,
			hemis_token    = EXCLUDED.hemis_token,
			full_name      = EXCLUDED.full_name,
			role           = EXCLUDED.role,
			group_name     = EXCLUDED.group_name,
			updated_at     = now()
		RETURNING `+identityColumns,
		idn.Login, idn.Secret, idn.Token, idn.FullName, string(idn.Role), idn.Group)
	if err != nil {
		return models.Identity{}, fmt.Errorf("upsert identity %s: %w", idn.Login, err)
	}
	return out, nil
}

func (s *IdentityStore) GetIdentityByLogin(ctx context.Context, login string) (models.Identity, error) {
	return s.getOne(ctx, `SELECT `+identityColumns+` FROM identities WHERE hemis_login = $1`, login)
}

func (s *IdentityStore) GetIdentityByChatID(ctx context.Context, chatID int64) (models.Identity, error) {
	return s.getOne(ctx, `SELECT `+identityColumns+` FROM identities WHERE telegram_chat_id = $1`, chatID)
}

func (s *IdentityStore) getOne(ctx context.Context, query string, arg any) (models.Identity, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	var idn models.Identity
	err := s.db.GetContext(ctx, &idn, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Identity{}, models.ErrIdentityNotFound
	}
	if err != nil {
		return models.Identity{}, fmt.Errorf("get identity: %w", err)
	}
	return idn, nil
}

// BindChat привязывает чат к логину в одной транзакции.
// Возвращает логин, от которого чат отвязан ("" если такого нет).
func (s *IdentityStore) BindChat(ctx context.Context, chatID int64, login string) (prev string, err error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var id int64
	err = tx.GetContext(ctx, &id, `SELECT id FROM identities WHERE hemis_login = $1 FOR UPDATE`, login)
	if errors.Is(err, sql.ErrNoRows) {
		err = models.ErrIdentityNotFound
		return "", err
	}
	if err != nil {
		return "", fmt.Errorf("bind chat: %w", err)
	}

	err = tx.GetContext(ctx, &prev, `
		UPDATE identities SET telegram_chat_id = NULL, updated_at = now()
		WHERE telegram_chat_id = $1 AND hemis_login <> $2
		RETURNING hemis_login`, chatID, login)
	if errors.Is(err, sql.ErrNoRows) {
		prev, err = "", nil
	}
	if err != nil {
		return "", fmt.Errorf("bind chat: unbind previous: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `UPDATE identities SET telegram_chat_id = $1, updated_at = now() WHERE hemis_login = $2`, chatID, login); err != nil {
		return "", fmt.Errorf("bind chat: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return "", err
	}
	return prev, nil
}

func (s *IdentityStore) ListSubscriberChatIDs(ctx context.Context) ([]int64, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	var ids []int64
	if err := s.db.SelectContext(ctx, &ids, `SELECT telegram_chat_id FROM identities WHERE telegram_chat_id IS NOT NULL ORDER BY telegram_chat_id`); err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	return ids, nil
}
