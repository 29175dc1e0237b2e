package twitch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/AaronLay10/TitanMedia/internal/apperr"
	"github.com/AaronLay10/TitanMedia/internal/platform"
)

// fakeTwitch serves the OAuth, Helix and chat endpoints.
type fakeTwitch struct {
	srv *httptest.Server

	mu       sync.Mutex
	patches  []map[string]string
	revoked  []string
	chatIn   chan string
	chatOut  chan string
	title    string
	gameID   string
	gameName string
}

func newFakeTwitch(t *testing.T) *fakeTwitch {
	t.Helper()
	f := &fakeTwitch{
		chatIn:   make(chan string, 64),
		chatOut:  make(chan string, 64),
		title:    "Old title",
		gameID:   "1",
		gameName: "Just Chatting",
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.Form.Get("code") != "good-code" && r.Form.Get("grant_type") != "refresh_token" {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "tok-1",
			"refresh_token": "ref-1",
			"token_type":    "bearer",
			"expires_in":    3600,
		})
	})
	mux.HandleFunc("/oauth2/revoke", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		f.mu.Lock()
		f.revoked = append(f.revoked, r.Form.Get("token"))
		f.mu.Unlock()
	})
	authed := func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer tok-1" || r.Header.Get("Client-Id") != "cid" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			h(w, r)
		}
	}
	mux.HandleFunc("/helix/users", authed(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":[{"id":"42","login":"caster","display_name":"Caster"}]}`)
	}))
	mux.HandleFunc("/helix/games", authed(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("name") == "Retro" {
			_, _ = io.WriteString(w, `{"data":[{"id":"27284","name":"Retro"}]}`)
			return
		}
		_, _ = io.WriteString(w, `{"data":[]}`)
	}))
	mux.HandleFunc("/helix/channels", authed(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if r.URL.Query().Get("broadcaster_id") != "42" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.Method == http.MethodPatch {
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			f.patches = append(f.patches, body)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": []helixChannel{{
			BroadcasterID: "42", Title: f.title, GameID: f.gameID, GameName: f.gameName,
		}}})
	}))
	upgrader := websocket.Upgrader{}
	mux.HandleFunc("/chat", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		go func() {
			for line := range f.chatOut {
				if err := conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
					return
				}
			}
		}()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			for _, line := range strings.Split(strings.TrimRight(string(data), "\r\n"), "\r\n") {
				f.chatIn <- line
			}
		}
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeTwitch) client(t *testing.T, browser func(string) error, bot *platform.Bot) *Client {
	wsURL := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/chat"
	return New(Options{
		ClientID:     "cid",
		ClientSecret: "secret",
		RedirectURL:  "http://127.0.0.1:0/auth/twitch/callback",
		TokenFile:    filepath.Join(t.TempDir(), "tokens.json"),
		AuthURL:      f.srv.URL + "/oauth2/authorize",
		TokenURL:     f.srv.URL + "/oauth2/token",
		RevokeURL:    f.srv.URL + "/oauth2/revoke",
		HelixURL:     f.srv.URL + "/helix",
		ChatURL:      wsURL,
		OpenBrowser:  browser,
		Bot:          bot,
	})
}

// browserWithCode simulates the user approving the login.
func browserWithCode(code string) func(string) error {
	return func(authURL string) error {
		u, err := url.Parse(authURL)
		if err != nil {
			return err
		}
		q := u.Query()
		cb := q.Get("redirect_uri") + "?" + url.Values{"code": {code}, "state": {q.Get("state")}}.Encode()
		resp, err := http.Get(cb)
		if err != nil {
			return err
		}
		resp.Body.Close()
		return nil
	}
}

func login(t *testing.T, f *fakeTwitch, bot *platform.Bot) *Client {
	t.Helper()
	c := f.client(t, browserWithCode("good-code"), bot)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	user, err := c.Login(ctx)
	require.NoError(t, err)
	require.Equal(t, "caster", user.Login)
	return c
}

func expectLine(t *testing.T, ch <-chan string, want string) {
	t.Helper()
	select {
	case got := <-ch:
		assert.Equal(t, want, got)
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %q", want)
	}
}

func TestLoginStoresToken(t *testing.T) {
	f := newFakeTwitch(t)
	c := login(t, f, nil)

	user, ok := c.CurrentUser()
	require.True(t, ok)
	assert.Equal(t, "42", user.ID)
	assert.Equal(t, "Caster", user.DisplayName)

	userID, tok, err := c.store.Load()
	require.NoError(t, err)
	assert.Equal(t, "42", userID)
	assert.Equal(t, "tok-1", tok.AccessToken)

	// A second client restores the session from the file.
	c2 := New(c.opts)
	ok, err = c2.Restore(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	u2, _ := c2.CurrentUser()
	assert.Equal(t, "caster", u2.Login)
}

func TestLoginRejectsBadCode(t *testing.T) {
	f := newFakeTwitch(t)
	c := f.client(t, browserWithCode("bad-code"), nil)
	_, err := c.Login(context.Background())
	assert.True(t, apperr.Is(err, apperr.NotAuthenticated), "got %v", err)
	_, ok := c.CurrentUser()
	assert.False(t, ok)
}

func TestLoginStateMismatch(t *testing.T) {
	f := newFakeTwitch(t)
	c := f.client(t, func(authURL string) error {
		u, _ := url.Parse(authURL)
		resp, err := http.Get(u.Query().Get("redirect_uri") + "?code=good-code&state=forged")
		if err == nil {
			resp.Body.Close()
		}
		return err
	}, nil)
	_, err := c.Login(context.Background())
	assert.True(t, apperr.Is(err, apperr.NotAuthenticated))
}

func TestLoginTimesOut(t *testing.T) {
	f := newFakeTwitch(t)
	c := f.client(t, func(string) error { return nil }, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Login(ctx)
	assert.True(t, apperr.Is(err, apperr.Timeout))
}

func TestRequiresLogin(t *testing.T) {
	f := newFakeTwitch(t)
	c := f.client(t, nil, nil)
	ctx := context.Background()

	_, err := c.ChannelInfo(ctx)
	assert.True(t, apperr.Is(err, apperr.NotAuthenticated))
	assert.True(t, apperr.Is(c.UpdateChannelInfo(ctx, "t", ""), apperr.NotAuthenticated))
	assert.True(t, apperr.Is(c.ConnectChat(ctx), apperr.NotAuthenticated))
	assert.True(t, apperr.Is(c.SendMessage(ctx, "", "hi"), apperr.NotAuthenticated))
	assert.True(t, apperr.Is(c.Logout(ctx), apperr.NotAuthenticated))

	ok, err := c.Restore(ctx)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestChannelInfoAndUpdate(t *testing.T) {
	f := newFakeTwitch(t)
	c := login(t, f, nil)
	ctx := context.Background()

	info, err := c.ChannelInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, platform.ChannelInfo{BroadcasterID: "42", Title: "Old title", CategoryID: "1", CategoryName: "Just Chatting"}, info)

	require.NoError(t, c.UpdateChannelInfo(ctx, "New title", "Retro"))
	require.NoError(t, c.UpdateChannelInfo(ctx, "Only title", ""))

	err = c.UpdateChannelInfo(ctx, "", "No Such Game")
	assert.True(t, apperr.Is(err, apperr.InvalidValue))
	assert.True(t, apperr.Is(c.UpdateChannelInfo(ctx, "", ""), apperr.InvalidValue))

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, []map[string]string{
		{"title": "New title", "game_id": "27284"},
		{"title": "Only title"},
	}, f.patches)
}

func TestLogoutRevokesAndForgets(t *testing.T) {
	f := newFakeTwitch(t)
	c := login(t, f, nil)

	require.NoError(t, c.Logout(context.Background()))
	_, ok := c.CurrentUser()
	assert.False(t, ok)

	userID, _, err := c.store.Load()
	require.NoError(t, err)
	assert.Empty(t, userID)

	f.mu.Lock()
	assert.Equal(t, []string{"tok-1"}, f.revoked)
	f.mu.Unlock()
}

func TestChat(t *testing.T) {
	f := newFakeTwitch(t)
	bot := platform.NewBot(true, map[string]string{"!discord": "discord.gg/titan"})
	c := login(t, f, bot)

	got := make(chan platform.ChatMessage, 8)
	c.OnMessage(func(m platform.ChatMessage) { got <- m })

	require.NoError(t, c.ConnectChat(context.Background()))
	defer c.DisconnectChat()

	expectLine(t, f.chatIn, "CAP REQ :twitch.tv/tags twitch.tv/commands")
	expectLine(t, f.chatIn, "PASS oauth:tok-1")
	expectLine(t, f.chatIn, "NICK caster")
	expectLine(t, f.chatIn, "JOIN #caster")

	f.chatOut <- "@color=#FF0000;display-name=Viewer :viewer!viewer@viewer.tmi.twitch.tv PRIVMSG #caster :hello world\r\n" +
		":caster!caster@caster.tmi.twitch.tv PRIVMSG #caster :my own line\r\n" +
		"@color=;display-name=Quiet :quiet!quiet@quiet.tmi.twitch.tv PRIVMSG #caster :anyone here?\r\n"
	f.chatOut <- "@display-name=Fan :fan!fan@fan.tmi.twitch.tv PRIVMSG #caster :!DISCORD\r\n"
	f.chatOut <- "PING :tmi.twitch.tv\r\n"

	select {
	case m := <-got:
		assert.Equal(t, platform.ChatMessage{Channel: "caster", Username: "Viewer", Message: "hello world", Color: "#FF0000"}, m)
	case <-time.After(2 * time.Second):
		t.Fatal("no chat message delivered")
	}
	select {
	case m := <-got:
		assert.Equal(t, "Quiet", m.Username)
		assert.Equal(t, platform.DefaultChatColor, m.Color)
	case <-time.After(2 * time.Second):
		t.Fatal("no second chat message delivered")
	}

	expectLine(t, f.chatIn, "PRIVMSG #caster :discord.gg/titan")
	expectLine(t, f.chatIn, "PONG :tmi.twitch.tv")

	require.NoError(t, c.SendMessage(context.Background(), "", "brb\nsoon"))
	expectLine(t, f.chatIn, "PRIVMSG #caster :brb soon")

	assert.Empty(t, got, "bot commands and own lines are not forwarded")
}

func TestSendMessageNeedsChat(t *testing.T) {
	f := newFakeTwitch(t)
	c := login(t, f, nil)
	err := c.SendMessage(context.Background(), "", "hi")
	assert.True(t, apperr.Is(err, apperr.Unavailable))
}

func TestTokenStoreRemoveKeepsOthers(t *testing.T) {
	s := NewTokenStore(filepath.Join(t.TempDir(), "tokens.json"))
	require.NoError(t, s.Save("1", &oauth2.Token{AccessToken: "a"}))
	require.NoError(t, s.Save("2", &oauth2.Token{AccessToken: "b"}))
	require.NoError(t, s.Remove("2"))

	id, tok, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, id, "removing the current user clears current")
	assert.Nil(t, tok)

	require.NoError(t, s.Save("1", &oauth2.Token{AccessToken: "a2"}))
	id, tok, err = s.Load()
	require.NoError(t, err)
	assert.Equal(t, "1", id)
	assert.Equal(t, "a2", tok.AccessToken)
}
