package twitch

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AaronLay10/TitanMedia/internal/apperr"
	"github.com/AaronLay10/TitanMedia/internal/platform"
)

const (
	chatWriteWait = 10 * time.Second
	// Twitch sends PING about every five minutes.
	chatReadWait = 6 * time.Minute
)

// chatConn is one IRC session over websocket.
type chatConn struct {
	ws      *websocket.Conn
	login   string
	writeMu sync.Mutex
	done    chan struct{}

	closing sync.Once
	closed  chan struct{}
}

func (cc *chatConn) writeLine(line string) error {
	cc.writeMu.Lock()
	defer cc.writeMu.Unlock()
	cc.ws.SetWriteDeadline(time.Now().Add(chatWriteWait))
	return cc.ws.WriteMessage(websocket.TextMessage, []byte(line+"\r\n"))
}

func (cc *chatConn) close() {
	cc.closing.Do(func() {
		close(cc.closed)
		cc.writeMu.Lock()
		cc.ws.SetWriteDeadline(time.Now().Add(chatWriteWait))
		_ = cc.ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		cc.writeMu.Unlock()
		cc.ws.Close()
	})
}

// ConnectChat joins the logged-in user's channel. Connecting twice is a
// no-op.
func (c *Client) ConnectChat(ctx context.Context) error {
	const op = "twitch.connectChat"
	user, _, ts, err := c.session(op)
	if err != nil {
		return err
	}

	c.chatMu.Lock()
	defer c.chatMu.Unlock()
	if c.chat != nil {
		return nil
	}

	tok, err := ts.Token()
	if err != nil {
		return apperr.Wrap(apperr.NotAuthenticated, op, err)
	}
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	ws, _, err := dialer.DialContext(ctx, c.opts.ChatURL, nil)
	if err != nil {
		err = apperr.Wrap(apperr.Unavailable, op, err)
		emitError(op, err)
		return err
	}

	cc := &chatConn{
		ws:     ws,
		login:  strings.ToLower(user.Login),
		done:   make(chan struct{}),
		closed: make(chan struct{}),
	}
	for _, line := range []string{
		"CAP REQ :twitch.tv/tags twitch.tv/commands",
		"PASS oauth:" + tok.AccessToken,
		"NICK " + cc.login,
		"JOIN #" + cc.login,
	} {
		if err := cc.writeLine(line); err != nil {
			ws.Close()
			return apperr.Wrap(apperr.Unavailable, op, err)
		}
	}
	c.chat = cc
	go c.readLoop(cc)
	emitEvent("chat.connected", map[string]interface{}{"channel": cc.login})
	return nil
}

// DisconnectChat leaves chat and waits for the reader to stop.
func (c *Client) DisconnectChat() error {
	c.chatMu.Lock()
	cc := c.chat
	c.chat = nil
	c.chatMu.Unlock()
	if cc == nil {
		return nil
	}
	cc.close()
	<-cc.done
	return nil
}

// SendMessage posts text to channel, or to the user's own channel when
// channel is empty.
func (c *Client) SendMessage(ctx context.Context, channel, text string) error {
	const op = "twitch.sendMessage"
	if _, _, _, err := c.session(op); err != nil {
		return err
	}
	c.chatMu.Lock()
	cc := c.chat
	c.chatMu.Unlock()
	if cc == nil {
		return apperr.New(apperr.Unavailable, op, "chat is not connected")
	}
	if text = strings.TrimSpace(text); text == "" {
		return apperr.New(apperr.InvalidValue, op, "empty message")
	}
	if ctx.Err() != nil {
		return apperr.Wrap(apperr.Timeout, op, ctx.Err())
	}
	return cc.send(op, channel, text)
}

func (cc *chatConn) send(op, channel, text string) error {
	channel = strings.TrimPrefix(strings.ToLower(channel), "#")
	if channel == "" {
		channel = cc.login
	}
	// IRC lines end at the first newline.
	text = strings.NewReplacer("\r", " ", "\n", " ").Replace(text)
	if err := cc.writeLine("PRIVMSG #" + channel + " :" + text); err != nil {
		return apperr.Wrap(apperr.Unavailable, op, err)
	}
	return nil
}

func (c *Client) readLoop(cc *chatConn) {
	defer close(cc.done)
	for {
		cc.ws.SetReadDeadline(time.Now().Add(chatReadWait))
		_, data, err := cc.ws.ReadMessage()
		if err != nil {
			select {
			case <-cc.closed:
			default:
				log.Printf("twitch chat read: %v", err)
				c.chatMu.Lock()
				if c.chat == cc {
					c.chat = nil
				}
				c.chatMu.Unlock()
				cc.ws.Close()
			}
			emitEvent("chat.disconnected", map[string]interface{}{"channel": cc.login})
			return
		}
		for _, line := range strings.Split(string(data), "\r\n") {
			msg, err := parseIRC(line)
			if err != nil {
				continue
			}
			c.handleIRC(cc, msg)
		}
	}
}

func (c *Client) handleIRC(cc *chatConn, m ircMessage) {
	switch m.Command {
	case "PING":
		if err := cc.writeLine("PONG :" + m.Trailing()); err != nil {
			log.Printf("twitch chat pong: %v", err)
		}
	case "PRIVMSG":
		if len(m.Params) < 2 {
			return
		}
		nick := strings.ToLower(m.Nick())
		if nick == cc.login {
			return
		}
		channel := strings.TrimPrefix(m.Params[0], "#")
		text := m.Trailing()

		if reply, ok := c.opts.Bot.Reply(text); ok {
			if err := cc.send("twitch.botReply", channel, reply); err != nil {
				emitError("twitch.botReply", err)
				return
			}
			emitEvent("chat.bot_reply", map[string]interface{}{"channel": channel, "command": strings.TrimSpace(text)})
			return
		}

		msg := platform.ChatMessage{
			Channel:  channel,
			Username: m.Tags["display-name"],
			Message:  text,
			Color:    m.Tags["color"],
		}
		if msg.Username == "" {
			msg.Username = m.Nick()
		}
		if msg.Color == "" {
			msg.Color = platform.DefaultChatColor
		}
		emitEvent("chat.message", map[string]interface{}{"channel": channel, "username": msg.Username})
		c.deliver(msg)
	case "RECONNECT":
		log.Printf("twitch chat: server requested reconnect")
		cc.ws.Close()
	}
}
