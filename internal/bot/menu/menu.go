package menu

import tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

// Кнопки главного меню. Текст кнопки приходит в бот обычным сообщением.
const (
	BtnToday = "📅 Сегодня"
	BtnWeek  = "🗓 Неделя"
	BtnLogin = "🔑 Привязать аккаунт"
)

// MainMenu возвращает меню в зависимости от того, привязан ли к чату аккаунт HEMIS
func MainMenu(linked bool) tgbotapi.ReplyKeyboardMarkup {
	if !linked {
		return tgbotapi.NewReplyKeyboard(
			tgbotapi.NewKeyboardButtonRow(
				tgbotapi.NewKeyboardButton(BtnLogin),
			),
		)
	}
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(BtnToday),
			tgbotapi.NewKeyboardButton(BtnWeek),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(BtnLogin),
		),
	)
}
