package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AaronLay10/TitanMedia/internal/apperr"
)

func TestBotReply(t *testing.T) {
	b := NewBot(true, map[string]string{"!Discord": "discord.gg/titan", "!uptime": "since noon"})

	reply, ok := b.Reply("!discord")
	assert.True(t, ok)
	assert.Equal(t, "discord.gg/titan", reply)

	reply, ok = b.Reply("  !UPTIME ")
	assert.True(t, ok)
	assert.Equal(t, "since noon", reply)

	_, ok = b.Reply("!discord please")
	assert.False(t, ok, "only exact commands match")

	_, ok = b.Reply("hello")
	assert.False(t, ok)
}

func TestBotDisabled(t *testing.T) {
	b := NewBot(false, map[string]string{"!discord": "x"})
	_, ok := b.Reply("!discord")
	assert.False(t, ok)

	b.SetEnabled(true)
	_, ok = b.Reply("!discord")
	assert.True(t, ok)

	var nilBot *Bot
	_, ok = nilBot.Reply("!discord")
	assert.False(t, ok)
}

func TestErrNotAuthenticated(t *testing.T) {
	err := ErrNotAuthenticated("platform.channelInfo")
	assert.True(t, apperr.Is(err, apperr.NotAuthenticated))
}
