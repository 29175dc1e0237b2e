package overlay

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AaronLay10/TitanMedia/internal/apperr"
	"github.com/AaronLay10/TitanMedia/internal/engine"
	"github.com/AaronLay10/TitanMedia/internal/platform"
	"github.com/AaronLay10/TitanMedia/internal/sources"
	"github.com/AaronLay10/TitanMedia/internal/studio"
)

type call struct {
	op    string
	value any
}

type fakeController struct {
	mu    sync.Mutex
	calls []call
	fail  error
}

func (f *fakeController) UpdateProperties(_ context.Context, _, _ string, values map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.calls = append(f.calls, call{"url", values["url"]})
	return nil
}

func (f *fakeController) SetVisible(_ context.Context, _, _ string, visible bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.calls = append(f.calls, call{"visible", visible})
	return nil
}

func (f *fakeController) snapshot() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func newRunner(t *testing.T, ctrl Controller, d time.Duration) *Runner {
	t.Helper()
	r, err := New(ctrl, Options{
		Scene:    "Scene 1",
		Source:   "Alert",
		URL:      "http://localhost:3000/overlays/alert/",
		Trigger:  "!alert",
		Duration: d,
	})
	require.NoError(t, err)
	t.Cleanup(r.Stop)
	return r
}

func TestNewValidates(t *testing.T) {
	_, err := New(&fakeController{}, Options{Source: "Alert", URL: "http://x"})
	assert.True(t, apperr.Is(err, apperr.InvalidValue))
	_, err = New(&fakeController{}, Options{Scene: "S", Source: "Alert"})
	assert.True(t, apperr.Is(err, apperr.InvalidValue))

	r, err := New(&fakeController{}, Options{Scene: "S", Source: "Alert", URL: "http://x"})
	require.NoError(t, err)
	assert.Equal(t, DefaultDuration, r.opts.Duration)
}

func TestAlertURL(t *testing.T) {
	r := newRunner(t, &fakeController{}, time.Second)
	assert.Equal(t, "http://localhost:3000/overlays/alert/?username=Big+Fan", r.AlertURL("Big Fan"))

	r.opts.URL = "http://host/alert?theme=dark"
	assert.Equal(t, "http://host/alert?theme=dark&username=x", r.AlertURL("x"))
}

func TestShowThenHide(t *testing.T) {
	ctrl := &fakeController{}
	r := newRunner(t, ctrl, 20*time.Millisecond)

	require.NoError(t, r.Show(context.Background(), "Viewer"))
	assert.Equal(t, []call{
		{"url", "http://localhost:3000/overlays/alert/?username=Viewer"},
		{"visible", true},
	}, ctrl.snapshot())

	assert.Eventually(t, func() bool { return len(ctrl.snapshot()) == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, call{"visible", false}, ctrl.snapshot()[2])
}

func TestNewAlertRestartsTimer(t *testing.T) {
	ctrl := &fakeController{}
	r := newRunner(t, ctrl, 80*time.Millisecond)

	require.NoError(t, r.Show(context.Background(), "First"))
	time.Sleep(40 * time.Millisecond)
	require.NoError(t, r.Show(context.Background(), "Second"))

	assert.Eventually(t, func() bool { return len(ctrl.snapshot()) == 5 }, time.Second, 5*time.Millisecond)
	time.Sleep(120 * time.Millisecond)
	calls := ctrl.snapshot()
	require.Len(t, calls, 5, "only the latest alert is hidden")
	assert.Equal(t, call{"visible", false}, calls[4])
}

func TestStopCancelsHide(t *testing.T) {
	ctrl := &fakeController{}
	r := newRunner(t, ctrl, 50*time.Millisecond)

	require.NoError(t, r.Show(context.Background(), "Viewer"))
	r.Stop()
	time.Sleep(80 * time.Millisecond)
	assert.Len(t, ctrl.snapshot(), 2)

	err := r.Show(context.Background(), "Again")
	assert.True(t, apperr.Is(err, apperr.Unavailable))
}

func TestShowFailure(t *testing.T) {
	ctrl := &fakeController{fail: apperr.New(apperr.NotFound, "studio.updateProperties", "no source")}
	r := newRunner(t, ctrl, time.Second)

	err := r.Show(context.Background(), "Viewer")
	assert.True(t, apperr.Is(err, apperr.NotFound))
	assert.True(t, apperr.Is(r.Show(context.Background(), " "), apperr.InvalidValue))
}

func TestHandleChatTrigger(t *testing.T) {
	ctrl := &fakeController{}
	r := newRunner(t, ctrl, time.Second)

	r.HandleChat(platform.ChatMessage{Username: "Viewer", Message: "hello"})
	assert.Empty(t, ctrl.snapshot())

	r.HandleChat(platform.ChatMessage{Username: "Viewer", Message: " !ALERT "})
	assert.Len(t, ctrl.snapshot(), 2)
}

func TestAlertAgainstStudio(t *testing.T) {
	ctx := context.Background()
	s := studio.New(engine.NewClient(engine.NewSim(nil), time.Second), nil, sources.NewResolver("linux"), studio.Options{})
	require.NoError(t, s.Bootstrap(ctx))
	t.Cleanup(func() { s.Close(ctx) })

	_, err := s.AddSource(ctx, studio.AddSourceRequest{Scene: "Scene 1", Kind: sources.BrowserSource, Name: "Alert"})
	require.NoError(t, err)
	require.NoError(t, s.SetVisible(ctx, "Scene 1", "Alert", false))

	r := newRunner(t, s, 20*time.Millisecond)
	require.NoError(t, r.Show(ctx, "Viewer"))

	src, ok := s.Source("Scene 1", "Alert")
	require.True(t, ok)
	assert.True(t, src.Visible)
	assert.Equal(t, "http://localhost:3000/overlays/alert/?username=Viewer", src.Settings["url"])

	assert.Eventually(t, func() bool {
		src, _ := s.Source("Scene 1", "Alert")
		return !src.Visible
	}, time.Second, 5*time.Millisecond)
}

func TestBrandURL(t *testing.T) {
	tests := []struct {
		name, page, streamer, color string
		want                        string
		code                        apperr.Code
	}{
		{name: "both", page: "https://overlays.example.com/gaming-basic", streamer: "Aaron", color: "#FF8800",
			want: "https://overlays.example.com/gaming-basic?color=%23FF8800&name=Aaron"},
		{name: "keeps other params", page: "https://o.example.com/p?theme=dark", streamer: "Ann Lee",
			want: "https://o.example.com/p?name=Ann+Lee&theme=dark"},
		{name: "empty clears", page: "https://o.example.com/p?name=Old&color=%23000", want: "https://o.example.com/p"},
		{name: "short hex", page: "https://o.example.com/p", color: "#abc", want: "https://o.example.com/p?color=%23abc"},
		{name: "bad color", page: "https://o.example.com/p", color: "orange", code: apperr.InvalidValue},
		{name: "no scheme", page: "overlay.html", code: apperr.InvalidValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BrandURL(tt.page, tt.streamer, tt.color)
			if tt.code != "" {
				assert.Equal(t, tt.code, apperr.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApplyBranding(t *testing.T) {
	ctrl := &fakeController{}
	u, err := ApplyBranding(context.Background(), ctrl, Branding{
		Scene: "Scene 1", Source: "Frame", URL: "https://o.example.com/p", Name: "Aaron", Color: "#123456",
	})
	require.NoError(t, err)
	assert.Equal(t, []call{{"url", u}}, ctrl.snapshot())

	_, err = ApplyBranding(context.Background(), ctrl, Branding{URL: "https://o.example.com/p"})
	assert.Equal(t, apperr.InvalidValue, apperr.CodeOf(err))

	ctrl.fail = apperr.New(apperr.NotFound, "test", "no such source")
	_, err = ApplyBranding(context.Background(), ctrl, Branding{Scene: "S", Source: "X", URL: "https://o.example.com/p"})
	assert.Equal(t, apperr.NotFound, apperr.CodeOf(err))
}
