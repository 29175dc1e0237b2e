// Package sources resolves platform-independent source kinds to engine type
// ids and generates default source names.
package sources

import (
	"runtime"
	"sort"
	"sync"

	"github.com/AaronLay10/TitanMedia/internal/apperr"
)

// Kind is a generic, platform-independent source kind.
type Kind string

const (
	VideoCaptureDevice Kind = "video_capture_device"
	GameCapture        Kind = "game_capture"
	BrowserSource      Kind = "browser_source"
	AudioInputCapture  Kind = "audio_input_capture"
	AudioOutputCapture Kind = "audio_output_capture"
)

// Platform names match runtime.GOOS.
const (
	Windows = "windows"
	Darwin  = "darwin"
	Linux   = "linux"
)

// KindInfo describes a generic kind.
type KindInfo struct {
	Kind     Kind
	Label    string
	HasAudio bool
	// TypeIDs maps platform to engine type id. A missing platform means the
	// kind is unavailable there.
	TypeIDs map[string]string
}

var kindTable = map[Kind]KindInfo{
	VideoCaptureDevice: {
		Kind:  VideoCaptureDevice,
		Label: "Video Capture Device",
		TypeIDs: map[string]string{
			Windows: "dshow_input",
			Darwin:  "av_capture_input",
			Linux:   "v4l2_input",
		},
	},
	GameCapture: {
		Kind:     GameCapture,
		Label:    "Game Capture",
		HasAudio: true,
		TypeIDs: map[string]string{
			Windows: "game_capture",
		},
	},
	BrowserSource: {
		Kind:     BrowserSource,
		Label:    "Browser Source",
		HasAudio: true,
		TypeIDs: map[string]string{
			Windows: "browser_source",
			Darwin:  "browser_source",
			Linux:   "browser_source",
		},
	},
	AudioInputCapture: {
		Kind:     AudioInputCapture,
		Label:    "Audio Input Capture",
		HasAudio: true,
		TypeIDs: map[string]string{
			Windows: "wasapi_input_capture",
			Darwin:  "coreaudio_input_capture",
			Linux:   "pulse_input_capture",
		},
	},
	AudioOutputCapture: {
		Kind:     AudioOutputCapture,
		Label:    "Audio Output Capture",
		HasAudio: true,
		TypeIDs: map[string]string{
			Windows: "wasapi_output_capture",
			Darwin:  "coreaudio_output_capture",
			Linux:   "pulse_output_capture",
		},
	},
}

// Kinds returns every known kind in sorted order.
func Kinds() []Kind {
	out := make([]Kind, 0, len(kindTable))
	for k := range kindTable {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Lookup returns the table entry for a kind.
func Lookup(kind Kind) (KindInfo, bool) {
	info, ok := kindTable[kind]
	return info, ok
}

// Resolver maps kinds to type ids for one platform.
type Resolver struct {
	mu       sync.RWMutex
	platform string
}

// NewResolver returns a resolver for platform, or for runtime.GOOS when empty.
func NewResolver(platform string) *Resolver {
	if platform == "" {
		platform = runtime.GOOS
	}
	return &Resolver{platform: platform}
}

// Platform returns the platform the resolver answers for.
func (r *Resolver) Platform() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.platform
}

// SetPlatform switches the resolver to the platform an engine announced.
// Empty values are ignored.
func (r *Resolver) SetPlatform(platform string) {
	if platform == "" {
		return
	}
	r.mu.Lock()
	r.platform = platform
	r.mu.Unlock()
}

// Resolve returns the engine type id of kind on the resolver's platform.
// Unknown kinds fail with UnsupportedType, known kinds with no mapping for the
// platform fail with UnsupportedOnPlatform.
func (r *Resolver) Resolve(kind Kind) (string, KindInfo, error) {
	info, ok := kindTable[kind]
	if !ok {
		return "", KindInfo{}, apperr.New(apperr.UnsupportedType, "sources.resolve", "unknown source kind %q", kind)
	}
	platform := r.Platform()
	typeID, ok := info.TypeIDs[platform]
	if !ok {
		return "", info, apperr.New(apperr.UnsupportedOnPlatform, "sources.resolve",
			"%s is not available on %s", info.Label, platform)
	}
	return typeID, info, nil
}

// Available lists the kinds that resolve on the resolver's platform.
func (r *Resolver) Available() []Kind {
	platform := r.Platform()
	var out []Kind
	for _, k := range Kinds() {
		if _, ok := kindTable[k].TypeIDs[platform]; ok {
			out = append(out, k)
		}
	}
	return out
}

// KindOf finds the generic kind for an engine type id on the resolver's
// platform. It returns "" when the type id is not in the table.
func (r *Resolver) KindOf(typeID string) Kind {
	platform := r.Platform()
	for _, k := range Kinds() {
		if kindTable[k].TypeIDs[platform] == typeID {
			return k
		}
	}
	return ""
}
