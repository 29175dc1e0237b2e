package twitch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/AaronLay10/TitanMedia/internal/apperr"
	"github.com/AaronLay10/TitanMedia/internal/platform"
)

// helix is a minimal Helix REST client. The http.Client is expected to
// carry the bearer token (oauth2.NewClient).
type helix struct {
	base     string
	clientID string
	http     *http.Client
}

type helixUser struct {
	ID              string `json:"id"`
	Login           string `json:"login"`
	DisplayName     string `json:"display_name"`
	ProfileImageURL string `json:"profile_image_url"`
}

type helixChannel struct {
	BroadcasterID string `json:"broadcaster_id"`
	Title         string `json:"title"`
	GameID        string `json:"game_id"`
	GameName      string `json:"game_name"`
}

type helixGame struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (h *helix) do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	u := h.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return apperr.Wrap(apperr.Internal, op, err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return apperr.Wrap(apperr.Internal, op, err)
	}
	req.Header.Set("Client-Id", h.clientID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := h.http.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.Unavailable, op, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return apperr.New(apperr.NotAuthenticated, op, "helix rejected the token")
	case resp.StatusCode >= 300:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return apperr.New(apperr.Unavailable, op, "helix %s %s: %d %s", method, path, resp.StatusCode, bytes.TrimSpace(msg))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperr.Wrap(apperr.Internal, op, fmt.Errorf("decode helix response: %w", err))
	}
	return nil
}

func (h *helix) me(ctx context.Context) (*platform.UserIdentity, error) {
	var resp struct {
		Data []helixUser `json:"data"`
	}
	if err := h.do(ctx, "twitch.users", http.MethodGet, "/users", nil, nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, apperr.New(apperr.NotAuthenticated, "twitch.users", "token has no user")
	}
	u := resp.Data[0]
	return &platform.UserIdentity{
		ID:              u.ID,
		Login:           u.Login,
		DisplayName:     u.DisplayName,
		ProfileImageURL: u.ProfileImageURL,
	}, nil
}

func (h *helix) channel(ctx context.Context, broadcasterID string) (platform.ChannelInfo, error) {
	var resp struct {
		Data []helixChannel `json:"data"`
	}
	q := url.Values{"broadcaster_id": {broadcasterID}}
	if err := h.do(ctx, "twitch.channel", http.MethodGet, "/channels", q, nil, &resp); err != nil {
		return platform.ChannelInfo{}, err
	}
	if len(resp.Data) == 0 {
		return platform.ChannelInfo{}, apperr.New(apperr.NotFound, "twitch.channel", "channel %s not found", broadcasterID)
	}
	c := resp.Data[0]
	return platform.ChannelInfo{
		BroadcasterID: c.BroadcasterID,
		Title:         c.Title,
		CategoryID:    c.GameID,
		CategoryName:  c.GameName,
	}, nil
}

func (h *helix) gameByName(ctx context.Context, name string) (helixGame, error) {
	var resp struct {
		Data []helixGame `json:"data"`
	}
	if err := h.do(ctx, "twitch.games", http.MethodGet, "/games", url.Values{"name": {name}}, nil, &resp); err != nil {
		return helixGame{}, err
	}
	if len(resp.Data) == 0 {
		return helixGame{}, apperr.New(apperr.InvalidValue, "twitch.games", "unknown category %q", name)
	}
	return resp.Data[0], nil
}

func (h *helix) patchChannel(ctx context.Context, broadcasterID, title, gameID string) error {
	body := map[string]string{}
	if title != "" {
		body["title"] = title
	}
	if gameID != "" {
		body["game_id"] = gameID
	}
	q := url.Values{"broadcaster_id": {broadcasterID}}
	return h.do(ctx, "twitch.updateChannel", http.MethodPatch, "/channels", q, body, nil)
}
