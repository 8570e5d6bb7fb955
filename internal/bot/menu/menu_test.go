package menu

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMainMenu(t *testing.T) {
	m := MainMenu(false)
	assert.Len(t, m.Keyboard, 1)
	assert.Equal(t, BtnLogin, m.Keyboard[0][0].Text)

	m = MainMenu(true)
	assert.Len(t, m.Keyboard, 2)
	assert.Equal(t, BtnToday, m.Keyboard[0][0].Text)
	assert.Equal(t, BtnWeek, m.Keyboard[0][1].Text)
}
