package models

import (
	"errors"
	"time"
)

type Role string

const (
	Student Role = "student"
	Teacher Role = "teacher"
)

// Valid — в хранилище допустимы только две роли.
func (r Role) Valid() bool {
	return r == Student || r == Teacher
}

// Identity — учётка HEMIS, под которой кэшируется токен.
// Ровно одна запись на логин; Token либо пуст, либо был валиден при последнем успешном использовании.
type Identity struct {
	ID        int64     `db:"id" json:"id"`
	Login     string    `db:"hemis_login" json:"login"`
	Secret    string    `db:"hemis_password" json:"-"`
	Token     *string   `db:"hemis_token" json:"-"`
	FullName  *string   `db:"full_name" json:"fullName,omitempty"`
	Role      Role      `db:"role" json:"role"`
	Group     *string   `db:"group_name" json:"group,omitempty"`
	ChatID    *int64    `db:"telegram_chat_id" json:"chatId,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Credential — то, что сессионный слой читает из хранилища.
type Credential struct {
	Login  string  `db:"hemis_login"`
	Secret string  `db:"hemis_password"`
	Token  *string `db:"hemis_token"`
}

// HasToken — есть ли непустой закэшированный токен.
func (c Credential) HasToken() bool {
	return c.Token != nil && *c.Token != ""
}

// ErrIdentityNotFound — в хранилище нет записи для логина/чата.
var ErrIdentityNotFound = errors.New("identity not found")
