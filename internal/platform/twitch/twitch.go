// Package twitch implements platform.Platform for Twitch: OAuth login with a
// localhost callback, Helix channel metadata and IRC chat over websocket.
package twitch

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/AaronLay10/TitanMedia/internal/apperr"
	"github.com/AaronLay10/TitanMedia/internal/events"
	"github.com/AaronLay10/TitanMedia/internal/platform"
)

const (
	DefaultAuthURL   = "https://id.twitch.tv/oauth2/authorize"
	DefaultTokenURL  = "https://id.twitch.tv/oauth2/token"
	DefaultRevokeURL = "https://id.twitch.tv/oauth2/revoke"
	DefaultHelixURL  = "https://api.twitch.tv/helix"
	DefaultChatURL   = "wss://irc-ws.chat.twitch.tv:443"
)

// Scopes requested at login.
var Scopes = []string{
	"chat:read",
	"chat:edit",
	"channel:read:editors",
	"channel:manage:broadcast",
}

// Options configures a Client. Empty URLs use the public Twitch endpoints.
type Options struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	TokenFile    string

	AuthURL   string
	TokenURL  string
	RevokeURL string
	HelixURL  string
	ChatURL   string

	// OpenBrowser is handed the authorization URL. The default logs it.
	OpenBrowser func(authURL string) error
	HTTPClient  *http.Client
	Bot         *platform.Bot
}

// Client is a Twitch platform integration.
type Client struct {
	opts  Options
	oauth *oauth2.Config
	store *TokenStore

	mu     sync.RWMutex
	user   *platform.UserIdentity
	tokens oauth2.TokenSource
	api    *helix

	chatMu sync.Mutex
	chat   *chatConn

	handlersMu sync.RWMutex
	handlers   []func(platform.ChatMessage)
}

var _ platform.Platform = (*Client)(nil)

// New builds a client. It does not contact Twitch.
func New(opts Options) *Client {
	if opts.AuthURL == "" {
		opts.AuthURL = DefaultAuthURL
	}
	if opts.TokenURL == "" {
		opts.TokenURL = DefaultTokenURL
	}
	if opts.RevokeURL == "" {
		opts.RevokeURL = DefaultRevokeURL
	}
	if opts.HelixURL == "" {
		opts.HelixURL = DefaultHelixURL
	}
	if opts.ChatURL == "" {
		opts.ChatURL = DefaultChatURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if opts.OpenBrowser == nil {
		opts.OpenBrowser = func(u string) error {
			log.Printf("open this URL to log in to Twitch: %s", u)
			return nil
		}
	}
	return &Client{
		opts: opts,
		oauth: &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			RedirectURL:  opts.RedirectURL,
			Scopes:       Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   opts.AuthURL,
				TokenURL:  opts.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		store: NewTokenStore(opts.TokenFile),
	}
}

func (c *Client) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.opts.HTTPClient)
}

// Restore resumes the session saved in the token file. It reports whether a
// user is now logged in.
func (c *Client) Restore(ctx context.Context) (bool, error) {
	userID, tok, err := c.store.Load()
	if err != nil || userID == "" {
		return false, err
	}
	if err := c.activate(ctx, userID, tok); err != nil {
		return false, err
	}
	return true, nil
}

// activate builds the token source and helix client for tok and verifies
// it by fetching the user. userID may be empty right after login.
func (c *Client) activate(ctx context.Context, userID string, tok *oauth2.Token) error {
	ps := &persistingSource{store: c.store, userID: userID, last: tok.AccessToken}
	ps.base = c.oauth.TokenSource(c.oauthContext(context.Background()), tok)
	ts := oauth2.ReuseTokenSource(tok, ps)

	httpClient := oauth2.NewClient(c.oauthContext(context.Background()), ts)
	api := &helix{base: strings.TrimRight(c.opts.HelixURL, "/"), clientID: c.opts.ClientID, http: httpClient}
	user, err := api.me(ctx)
	if err != nil {
		return err
	}
	ps.userID = user.ID
	if userID != user.ID {
		if err := c.store.Save(user.ID, tok); err != nil {
			return apperr.Wrap(apperr.Internal, "twitch.login", err)
		}
	}

	c.mu.Lock()
	c.user, c.tokens, c.api = user, ts, api
	c.mu.Unlock()
	emitEvent("platform.login", map[string]interface{}{"user": user.Login, "platform": "twitch"})
	return nil
}

// Login runs the authorization code flow: it listens on the redirect URL,
// hands the authorization URL to OpenBrowser and waits for the callback.
// A redirect port of 0 picks a free port.
func (c *Client) Login(ctx context.Context) (*platform.UserIdentity, error) {
	const op = "twitch.login"

	redirect, err := url.Parse(c.oauth.RedirectURL)
	if err != nil || redirect.Host == "" {
		return nil, apperr.New(apperr.InvalidValue, op, "bad redirect url %q", c.oauth.RedirectURL)
	}
	ln, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return nil, apperr.Wrap(apperr.Unavailable, op, err)
	}
	cfg := *c.oauth
	if redirect.Port() == "0" {
		redirect.Host = ln.Addr().String()
		cfg.RedirectURL = redirect.String()
	}

	type callback struct {
		code string
		err  error
	}
	results := make(chan callback, 1)
	state := uuid.NewString()

	mux := http.NewServeMux()
	mux.HandleFunc(redirect.Path, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var res callback
		switch {
		case q.Get("state") != state:
			res.err = apperr.New(apperr.NotAuthenticated, op, "state mismatch")
		case q.Get("error") != "":
			res.err = apperr.New(apperr.NotAuthenticated, op, "%s: %s", q.Get("error"), q.Get("error_description"))
		case q.Get("code") == "":
			res.err = apperr.New(apperr.NotAuthenticated, op, "callback without code")
		default:
			res.code = q.Get("code")
		}
		if res.err != nil {
			http.Error(w, "Login failed. You can close this window.", http.StatusBadRequest)
		} else {
			fmt.Fprintln(w, "Login complete. You can close this window.")
		}
		select {
		case results <- res:
		default:
		}
	})
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go srv.Serve(ln)
	defer srv.Close()

	if err := c.opts.OpenBrowser(cfg.AuthCodeURL(state)); err != nil {
		return nil, apperr.Wrap(apperr.Unavailable, op, err)
	}

	var res callback
	select {
	case <-ctx.Done():
		return nil, apperr.Wrap(apperr.Timeout, op, ctx.Err())
	case res = <-results:
	}
	if res.err != nil {
		emitError(op, res.err)
		return nil, res.err
	}

	tok, err := cfg.Exchange(c.oauthContext(ctx), res.code)
	if err != nil {
		err = apperr.Wrap(apperr.NotAuthenticated, op, err)
		emitError(op, err)
		return nil, err
	}
	if err := c.activate(ctx, "", tok); err != nil {
		emitError(op, err)
		return nil, err
	}
	user, _ := c.CurrentUser()
	return user, nil
}

// Logout disconnects chat, revokes the token and forgets it.
func (c *Client) Logout(ctx context.Context) error {
	const op = "twitch.logout"

	c.mu.Lock()
	user, ts := c.user, c.tokens
	c.user, c.tokens, c.api = nil, nil, nil
	c.mu.Unlock()
	if user == nil {
		return platform.ErrNotAuthenticated(op)
	}

	_ = c.DisconnectChat()
	if tok, err := ts.Token(); err == nil {
		c.revoke(ctx, tok.AccessToken)
	}
	if err := c.store.Remove(user.ID); err != nil {
		return apperr.Wrap(apperr.Internal, op, err)
	}
	emitEvent("platform.logout", map[string]interface{}{"user": user.Login, "platform": "twitch"})
	return nil
}

// revoke is best effort; a token that outlives logout expires on its own.
func (c *Client) revoke(ctx context.Context, token string) {
	form := url.Values{"client_id": {c.opts.ClientID}, "token": {token}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.RevokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		log.Printf("twitch: revoke token: %v", err)
		return
	}
	resp.Body.Close()
}

// CurrentUser returns the logged-in user.
func (c *Client) CurrentUser() (*platform.UserIdentity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.user == nil {
		return nil, false
	}
	u := *c.user
	return &u, true
}

func (c *Client) session(op string) (*platform.UserIdentity, *helix, oauth2.TokenSource, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.user == nil {
		return nil, nil, nil, platform.ErrNotAuthenticated(op)
	}
	return c.user, c.api, c.tokens, nil
}

// ChannelInfo fetches the logged-in user's channel.
func (c *Client) ChannelInfo(ctx context.Context) (platform.ChannelInfo, error) {
	user, api, _, err := c.session("twitch.channel")
	if err != nil {
		return platform.ChannelInfo{}, err
	}
	return api.channel(ctx, user.ID)
}

// UpdateChannelInfo sets the stream title and category. Empty values are
// left unchanged; category is looked up by name.
func (c *Client) UpdateChannelInfo(ctx context.Context, title, category string) error {
	const op = "twitch.updateChannel"
	user, api, _, err := c.session(op)
	if err != nil {
		return err
	}
	if title == "" && category == "" {
		return apperr.New(apperr.InvalidValue, op, "title or category required")
	}
	var gameID string
	if category != "" {
		g, err := api.gameByName(ctx, category)
		if err != nil {
			return err
		}
		gameID = g.ID
	}
	if err := api.patchChannel(ctx, user.ID, title, gameID); err != nil {
		emitError(op, err)
		return err
	}
	emitEvent("platform.channel_updated", map[string]interface{}{"title": title, "category": category})
	return nil
}

// OnMessage registers a handler for forwarded chat messages.
func (c *Client) OnMessage(fn func(platform.ChatMessage)) {
	c.handlersMu.Lock()
	c.handlers = append(c.handlers, fn)
	c.handlersMu.Unlock()
}

func (c *Client) deliver(m platform.ChatMessage) {
	c.handlersMu.RLock()
	hs := append([]func(platform.ChatMessage){}, c.handlers...)
	c.handlersMu.RUnlock()
	for _, fn := range hs {
		fn(m)
	}
}

func emitEvent(name string, fields map[string]interface{}) {
	if _, err := events.Emit("info", name, "", fields); err != nil {
		log.Printf("event emit failed: %v", err)
	}
}

func emitError(op string, err error) {
	fields := map[string]interface{}{"op": op, "code": string(apperr.CodeOf(err)), "error": err.Error()}
	if _, e := events.Emit("error", "platform.error", "", fields); e != nil {
		log.Printf("event emit failed: %v", e)
	}
}
