package twitch

import (
	"errors"
	"strings"
)

// ircMessage is one parsed IRC line with IRCv3 tags.
type ircMessage struct {
	Tags    map[string]string
	Prefix  string
	Command string
	Params  []string
}

var errEmptyLine = errors.New("empty irc line")

// parseIRC parses "[@tags] [:prefix] COMMAND [params] [:trailing]".
func parseIRC(line string) (ircMessage, error) {
	line = strings.TrimRight(line, "\r\n")
	var m ircMessage
	if line == "" {
		return m, errEmptyLine
	}

	if strings.HasPrefix(line, "@") {
		raw, rest, _ := strings.Cut(line[1:], " ")
		m.Tags = parseTags(raw)
		line = strings.TrimLeft(rest, " ")
	}
	if strings.HasPrefix(line, ":") {
		m.Prefix, line, _ = strings.Cut(line[1:], " ")
		line = strings.TrimLeft(line, " ")
	}

	var trailing string
	hasTrailing := false
	if i := strings.Index(line, " :"); i >= 0 {
		trailing = line[i+2:]
		hasTrailing = true
		line = line[:i]
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return m, errors.New("irc line has no command")
	}
	m.Command = strings.ToUpper(fields[0])
	m.Params = fields[1:]
	if hasTrailing {
		m.Params = append(m.Params, trailing)
	}
	return m, nil
}

func parseTags(raw string) map[string]string {
	tags := make(map[string]string)
	for _, kv := range strings.Split(raw, ";") {
		if kv == "" {
			continue
		}
		k, v, _ := strings.Cut(kv, "=")
		tags[k] = unescapeTag(v)
	}
	return tags
}

var tagUnescaper = strings.NewReplacer(`\:`, ";", `\s`, " ", `\\`, `\`, `\r`, "\r", `\n`, "\n")

func unescapeTag(v string) string {
	if !strings.Contains(v, `\`) {
		return v
	}
	return tagUnescaper.Replace(v)
}

// Nick returns the nickname part of the prefix.
func (m ircMessage) Nick() string {
	nick, _, _ := strings.Cut(m.Prefix, "!")
	return nick
}

// Trailing returns the last parameter.
func (m ircMessage) Trailing() string {
	if len(m.Params) == 0 {
		return ""
	}
	return m.Params[len(m.Params)-1]
}
