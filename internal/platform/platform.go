// Package platform describes the streaming platform a studio broadcasts to:
// login, channel metadata and chat. Platform failures are reported to the
// caller and the event log; they never touch the studio core.
package platform

import (
	"context"
	"strings"
	"sync"

	"github.com/AaronLay10/TitanMedia/internal/apperr"
)

// DefaultChatColor is used when a chatter has not picked a color.
const DefaultChatColor = "#FFFFFF"

// UserIdentity is the logged-in broadcaster.
type UserIdentity struct {
	ID              string `json:"id"`
	Login           string `json:"login"`
	DisplayName     string `json:"display_name"`
	ProfileImageURL string `json:"profile_image_url,omitempty"`
}

// ChannelInfo is the broadcaster's channel metadata.
type ChannelInfo struct {
	BroadcasterID string `json:"broadcaster_id"`
	Title         string `json:"title"`
	CategoryID    string `json:"category_id"`
	CategoryName  string `json:"category_name"`
}

// ChatMessage is one chat line forwarded to listeners.
type ChatMessage struct {
	Channel  string `json:"channel"`
	Username string `json:"username"`
	Message  string `json:"message"`
	Color    string `json:"color"`
}

// Platform is implemented by streaming platform integrations.
type Platform interface {
	Login(ctx context.Context) (*UserIdentity, error)
	Logout(ctx context.Context) error
	CurrentUser() (*UserIdentity, bool)
	ChannelInfo(ctx context.Context) (ChannelInfo, error)
	UpdateChannelInfo(ctx context.Context, title, category string) error
	ConnectChat(ctx context.Context) error
	DisconnectChat() error
	SendMessage(ctx context.Context, channel, text string) error
	OnMessage(fn func(ChatMessage))
}

// ErrNotAuthenticated builds the error returned when no user is logged in.
func ErrNotAuthenticated(op string) error {
	return apperr.New(apperr.NotAuthenticated, op, "not logged in")
}

// Bot answers chat commands with canned replies. Matching is exact after
// trimming and case-insensitive.
type Bot struct {
	mu       sync.RWMutex
	enabled  bool
	commands map[string]string
}

// NewBot builds a bot from a command → reply table.
func NewBot(enabled bool, commands map[string]string) *Bot {
	b := &Bot{enabled: enabled, commands: make(map[string]string, len(commands))}
	for cmd, reply := range commands {
		b.commands[strings.ToLower(strings.TrimSpace(cmd))] = reply
	}
	return b
}

// SetEnabled toggles the bot.
func (b *Bot) SetEnabled(on bool) {
	b.mu.Lock()
	b.enabled = on
	b.mu.Unlock()
}

// Reply returns the canned reply for text. ok is false when the bot is off or
// the text is not a command, in which case the message should be forwarded.
func (b *Bot) Reply(text string) (reply string, ok bool) {
	if b == nil {
		return "", false
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.enabled {
		return "", false
	}
	reply, ok = b.commands[strings.ToLower(strings.TrimSpace(text))]
	return reply, ok
}
