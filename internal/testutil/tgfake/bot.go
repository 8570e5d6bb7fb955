// Package tgfake — запись исходящих вызовов telegram для тестов.
package tgfake

import (
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type Bot struct {
	mu      sync.Mutex
	calls   []tgbotapi.Chattable
	nextID  int
	SendErr error
	// FailChat — чаты, отправка в которые всегда падает.
	FailChat map[int64]error
}

func New() *Bot { return &Bot{FailChat: map[int64]error{}} }

func (b *Bot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, c)
	if err := b.errFor(c); err != nil {
		return tgbotapi.Message{}, err
	}
	b.nextID++
	return tgbotapi.Message{MessageID: b.nextID}, nil
}

func (b *Bot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, c)
	if err := b.errFor(c); err != nil {
		return nil, err
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (b *Bot) errFor(c tgbotapi.Chattable) error {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		if err, bad := b.FailChat[msg.ChatID]; bad {
			return err
		}
	}
	return b.SendErr
}

// Calls — копия всех вызовов по порядку.
func (b *Bot) Calls() []tgbotapi.Chattable {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]tgbotapi.Chattable(nil), b.calls...)
}

// Messages — отправленные текстовые сообщения.
func (b *Bot) Messages() []tgbotapi.MessageConfig {
	var out []tgbotapi.MessageConfig
	for _, c := range b.Calls() {
		if m, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, m)
		}
	}
	return out
}

// MessagesTo — текстовые сообщения в один чат.
func (b *Bot) MessagesTo(chatID int64) []tgbotapi.MessageConfig {
	var out []tgbotapi.MessageConfig
	for _, m := range b.Messages() {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	return out
}

// LastText — текст последнего сообщения или "".
func (b *Bot) LastText() string {
	msgs := b.Messages()
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1].Text
}

func (b *Bot) Reset() {
	b.mu.Lock()
	b.calls = nil
	b.mu.Unlock()
}
