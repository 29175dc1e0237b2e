package api

import (
	"context"
	"net/http"
	"time"

	"github.com/AaronLay10/TitanMedia/internal/apperr"
	"github.com/AaronLay10/TitanMedia/internal/overlay"
	"github.com/AaronLay10/TitanMedia/internal/platform"
)

// loginTimeout bounds how long POST /platform/login waits for the browser.
const loginTimeout = 5 * time.Minute

func (s *server) platformRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /platform/login", RequireAdmin(s.withPlatform(s.login)))
	mux.HandleFunc("POST /platform/logout", RequireAdmin(s.withPlatform(s.logout)))
	mux.HandleFunc("GET /platform/user", RequireAnyRole(s.withPlatform(s.currentUser)))
	mux.HandleFunc("GET /platform/channel", RequireAnyRole(s.withPlatform(s.channelInfo)))
	mux.HandleFunc("PATCH /platform/channel", RequireAnyRole(s.withPlatform(s.updateChannel)))
	mux.HandleFunc("POST /platform/chat/connect", RequireAnyRole(s.withPlatform(s.connectChat)))
	mux.HandleFunc("POST /platform/chat/disconnect", RequireAnyRole(s.withPlatform(s.disconnectChat)))
	mux.HandleFunc("POST /platform/chat/messages", RequireAnyRole(s.withPlatform(s.sendMessage)))

	mux.HandleFunc("POST /alerts", RequireAnyRole(s.showAlert))
	mux.HandleFunc("POST /overlays/branding", RequireAnyRole(s.brandOverlay))
}

func (s *server) withPlatform(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.Platform == nil {
			writeError(w, apperr.New(apperr.Unavailable, "api.platform", "platform integration is off"))
			return
		}
		h(w, r)
	}
}

func (s *server) login(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), loginTimeout)
	defer cancel()
	user, err := s.Platform.Login(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, user)
}

func (s *server) logout(w http.ResponseWriter, r *http.Request) {
	if err := s.Platform.Logout(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, nil)
}

func (s *server) currentUser(w http.ResponseWriter, r *http.Request) {
	user, ok := s.Platform.CurrentUser()
	if !ok {
		writeError(w, platform.ErrNotAuthenticated("api.currentUser"))
		return
	}
	writeOK(w, user)
}

func (s *server) channelInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.Platform.ChannelInfo(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, info)
}

type channelRequest struct {
	Title    string `json:"title"`
	Category string `json:"category"`
}

func (s *server) updateChannel(w http.ResponseWriter, r *http.Request) {
	var req channelRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.Platform.UpdateChannelInfo(r.Context(), req.Title, req.Category); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, nil)
}

func (s *server) connectChat(w http.ResponseWriter, r *http.Request) {
	if err := s.Platform.ConnectChat(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, nil)
}

func (s *server) disconnectChat(w http.ResponseWriter, r *http.Request) {
	if err := s.Platform.DisconnectChat(); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, nil)
}

type messageRequest struct {
	Channel string `json:"channel"`
	Text    string `json:"text"`
}

func (s *server) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.Platform.SendMessage(r.Context(), req.Channel, req.Text); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, nil)
}

type alertRequest struct {
	Username string `json:"username"`
}

func (s *server) showAlert(w http.ResponseWriter, r *http.Request) {
	if s.Alerts == nil {
		writeError(w, apperr.New(apperr.Unavailable, "api.alert", "alert overlay is not configured"))
		return
	}
	var req alertRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.Alerts.Show(r.Context(), req.Username); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, nil)
}

// brandOverlay sets the streamer name and frame color on an overlay page.
func (s *server) brandOverlay(w http.ResponseWriter, r *http.Request) {
	var req overlay.Branding
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	u, err := overlay.ApplyBranding(r.Context(), s.Studio, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, map[string]string{"url": u})
}
