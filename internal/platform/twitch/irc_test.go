package twitch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIRC(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		command string
		params  []string
		nick    string
		tags    map[string]string
	}{
		{
			name:    "ping",
			line:    "PING :tmi.twitch.tv",
			command: "PING",
			params:  []string{"tmi.twitch.tv"},
		},
		{
			name:    "privmsg with tags",
			line:    `@badge-info=;color=#1E90FF;display-name=Some\sOne :someone!someone@someone.tmi.twitch.tv PRIVMSG #chan :hi there :)`,
			command: "PRIVMSG",
			params:  []string{"#chan", "hi there :)"},
			nick:    "someone",
			tags:    map[string]string{"badge-info": "", "color": "#1E90FF", "display-name": "Some One"},
		},
		{
			name:    "numeric",
			line:    ":tmi.twitch.tv 001 caster :Welcome, GLHF!\r\n",
			command: "001",
			params:  []string{"caster", "Welcome, GLHF!"},
			nick:    "tmi.twitch.tv",
		},
		{
			name:    "no trailing",
			line:    ":caster!caster@caster.tmi.twitch.tv JOIN #caster",
			command: "JOIN",
			params:  []string{"#caster"},
			nick:    "caster",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := parseIRC(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.command, m.Command)
			assert.Equal(t, tt.params, m.Params)
			assert.Equal(t, tt.nick, m.Nick())
			if tt.tags != nil {
				assert.Equal(t, tt.tags, m.Tags)
			}
		})
	}
}

func TestParseIRCErrors(t *testing.T) {
	_, err := parseIRC("")
	assert.ErrorIs(t, err, errEmptyLine)

	_, err = parseIRC("@a=b :prefix")
	assert.Error(t, err)
}

func TestUnescapeTag(t *testing.T) {
	assert.Equal(t, `a;b c\d`, unescapeTag(`a\:b\sc\\d`))
	assert.Equal(t, "plain", unescapeTag("plain"))
}
