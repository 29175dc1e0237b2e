package overlay

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/AaronLay10/TitanMedia/internal/apperr"
)

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// Branding personalises a static overlay page: the page shows Name as the
// streamer name and draws its webcam frame in Color.
type Branding struct {
	Scene  string `json:"scene"`
	Source string `json:"source"`
	URL    string `json:"url"`
	Name   string `json:"name,omitempty"`
	Color  string `json:"color,omitempty"`
}

// BrandURL returns pageURL with the name and color parameters set. Empty
// values remove the parameter. Color must be a #RGB or #RRGGBB hex value.
func BrandURL(pageURL, name, color string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(pageURL))
	if err != nil || u.Scheme == "" {
		return "", apperr.New(apperr.InvalidValue, "overlay.brand", "bad overlay url %q", pageURL)
	}
	color = strings.TrimSpace(color)
	if color != "" && !hexColor.MatchString(color) {
		return "", apperr.New(apperr.InvalidValue, "overlay.brand", "color %q is not #RGB or #RRGGBB", color)
	}

	q := u.Query()
	for key, v := range map[string]string{"name": strings.TrimSpace(name), "color": color} {
		if v == "" {
			q.Del(key)
		} else {
			q.Set(key, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ApplyBranding points the browser source at the branded page URL.
func ApplyBranding(ctx context.Context, ctrl Controller, b Branding) (string, error) {
	if b.Scene == "" || b.Source == "" {
		return "", apperr.New(apperr.InvalidValue, "overlay.brand", "scene and source are required")
	}
	u, err := BrandURL(b.URL, b.Name, b.Color)
	if err != nil {
		return "", err
	}
	fields := map[string]interface{}{"scene": b.Scene, "source": b.Source, "name": b.Name, "color": b.Color}
	if err := ctrl.UpdateProperties(ctx, b.Scene, b.Source, map[string]any{"url": u}); err != nil {
		emitEvent("error", "alert.failed", map[string]interface{}{
			"step": "brand", "code": string(apperr.CodeOf(err)), "error": err.Error(),
			"scene": b.Scene, "source": b.Source,
		})
		return "", err
	}
	emitEvent("info", "alert.branded", fields)
	return u, nil
}
