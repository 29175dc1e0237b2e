// Package overlay drives the alert browser source: it points the source at
// the alert page with the viewer's name, shows it, and hides it again after
// a fixed time.
package overlay

import (
	"context"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/AaronLay10/TitanMedia/internal/apperr"
	"github.com/AaronLay10/TitanMedia/internal/events"
	"github.com/AaronLay10/TitanMedia/internal/platform"
)

// DefaultDuration is how long an alert stays visible.
const DefaultDuration = 5 * time.Second

// Controller is the subset of the studio an alert needs.
type Controller interface {
	UpdateProperties(ctx context.Context, scene, source string, values map[string]any) error
	SetVisible(ctx context.Context, scene, source string, visible bool) error
}

// Options names the alert source.
type Options struct {
	Scene    string
	Source   string
	URL      string
	Trigger  string // chat text that fires an alert, e.g. "!alert"
	Duration time.Duration
	Timeout  time.Duration // per studio call
}

// Runner shows alerts one at a time. A new alert replaces the one on screen
// and restarts its hide timer.
type Runner struct {
	ctrl Controller
	opts Options

	mu      sync.Mutex
	timer   *time.Timer
	seq     uint64
	stopped bool
	wg      sync.WaitGroup
}

// New returns a runner. Scene, Source and URL are required.
func New(ctrl Controller, opts Options) (*Runner, error) {
	if opts.Scene == "" || opts.Source == "" {
		return nil, apperr.New(apperr.InvalidValue, "overlay.new", "alert scene and source are required")
	}
	if _, err := url.Parse(opts.URL); err != nil || opts.URL == "" {
		return nil, apperr.New(apperr.InvalidValue, "overlay.new", "bad alert url %q", opts.URL)
	}
	if opts.Duration <= 0 {
		opts.Duration = DefaultDuration
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	return &Runner{ctrl: ctrl, opts: opts}, nil
}

// AlertURL returns the page URL carrying username.
func (r *Runner) AlertURL(username string) string {
	u, _ := url.Parse(r.opts.URL)
	q := u.Query()
	q.Set("username", username)
	u.RawQuery = q.Encode()
	return u.String()
}

// Show displays an alert for username.
func (r *Runner) Show(ctx context.Context, username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return apperr.New(apperr.InvalidValue, "overlay.show", "username required")
	}

	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return apperr.New(apperr.Unavailable, "overlay.show", "alert runner stopped")
	}
	r.seq++
	seq := r.seq
	if r.timer != nil {
		if r.timer.Stop() {
			r.wg.Done()
		}
		r.timer = nil
	}
	r.mu.Unlock()

	fields := map[string]interface{}{"scene": r.opts.Scene, "source": r.opts.Source, "username": username}
	if err := r.ctrl.UpdateProperties(ctx, r.opts.Scene, r.opts.Source, map[string]any{"url": r.AlertURL(username)}); err != nil {
		r.failed("show", err, fields)
		return err
	}
	if err := r.ctrl.SetVisible(ctx, r.opts.Scene, r.opts.Source, true); err != nil {
		r.failed("show", err, fields)
		return err
	}
	emitEvent("info", "alert.shown", fields)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped || seq != r.seq {
		return nil
	}
	r.wg.Add(1)
	r.timer = time.AfterFunc(r.opts.Duration, func() {
		defer r.wg.Done()
		r.hide(seq)
	})
	return nil
}

func (r *Runner) hide(seq uint64) {
	r.mu.Lock()
	if seq != r.seq {
		r.mu.Unlock()
		return
	}
	r.timer = nil
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), r.opts.Timeout)
	defer cancel()
	fields := map[string]interface{}{"scene": r.opts.Scene, "source": r.opts.Source}
	if err := r.ctrl.SetVisible(ctx, r.opts.Scene, r.opts.Source, false); err != nil {
		r.failed("hide", err, fields)
		return
	}
	emitEvent("info", "alert.hidden", fields)
}

// HandleChat fires an alert for the sender when the message equals the
// trigger. It has the platform.Platform OnMessage signature.
func (r *Runner) HandleChat(m platform.ChatMessage) {
	if r.opts.Trigger == "" || !strings.EqualFold(strings.TrimSpace(m.Message), r.opts.Trigger) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.opts.Timeout)
	defer cancel()
	_ = r.Show(ctx, m.Username)
}

// Stop cancels a pending hide and waits for a running one.
func (r *Runner) Stop() {
	r.mu.Lock()
	r.stopped = true
	if r.timer != nil && r.timer.Stop() {
		r.wg.Done()
	}
	r.timer = nil
	r.mu.Unlock()
	r.wg.Wait()
}

func (r *Runner) failed(step string, err error, fields map[string]interface{}) {
	f := map[string]interface{}{"step": step, "code": string(apperr.CodeOf(err)), "error": err.Error()}
	for k, v := range fields {
		f[k] = v
	}
	emitEvent("error", "alert.failed", f)
}

func emitEvent(level, name string, fields map[string]interface{}) {
	if _, err := events.Emit(level, name, "", fields); err != nil {
		log.Printf("event emit failed: %v", err)
	}
}
