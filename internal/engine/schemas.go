package engine

import "github.com/AaronLay10/TitanMedia/internal/properties"

// TypeSpec describes a source type the simulated engine can create.
type TypeSpec struct {
	HasAudio bool
	Schema   properties.Schema
}

func videoDeviceSchema() properties.Schema {
	return properties.Schema{
		{Name: "device_id", Kind: properties.KindText, Label: "Device", Default: "default"},
		{Name: "resolution", Kind: properties.KindList, Label: "Resolution", Default: "1920x1080", Options: []properties.Option{
			{Label: "1280x720", Value: "1280x720"},
			{Label: "1920x1080", Value: "1920x1080"},
			{Label: "3840x2160", Value: "3840x2160"},
		}},
		{Name: "fps", Kind: properties.KindFloat, Label: "FPS", Default: 30.0, Min: ptr(1), Max: ptr(240)},
		{Name: "deactivate_when_not_showing", Kind: properties.KindBool, Label: "Deactivate when not showing", Default: false},
	}
}

func audioDeviceSchema() properties.Schema {
	return properties.Schema{
		{Name: "device_id", Kind: properties.KindText, Label: "Device", Default: "default"},
		{Name: "volume", Kind: properties.KindFloat, Label: "Volume", Default: 1.0, Min: ptr(0), Max: ptr(20)},
		{Name: "use_device_timing", Kind: properties.KindBool, Label: "Use device timestamps", Default: false},
	}
}

// DefaultTypes returns the type ids a simulated engine offers, covering every
// platform mapping plus image and color sources.
func DefaultTypes() map[string]TypeSpec {
	wMin, wMax := properties.Range(1, 8192)
	browser := TypeSpec{
		HasAudio: true,
		Schema: properties.Schema{
			{Name: "url", Kind: properties.KindText, Label: "URL", Default: "about:blank"},
			{Name: "width", Kind: properties.KindInt, Label: "Width", Default: float64(800), Min: wMin, Max: wMax},
			{Name: "height", Kind: properties.KindInt, Label: "Height", Default: float64(600), Min: wMin, Max: wMax},
			{Name: "fps", Kind: properties.KindInt, Label: "FPS", Default: float64(30), Min: ptr(1), Max: ptr(60)},
			{Name: "css", Kind: properties.KindText, Label: "Custom CSS", Default: ""},
			{Name: "shutdown", Kind: properties.KindBool, Label: "Shutdown source when not visible", Default: false},
			{Name: "reroute_audio", Kind: properties.KindBool, Label: "Control audio via mixer", Default: false},
		},
	}
	game := TypeSpec{
		HasAudio: true,
		Schema: properties.Schema{
			{Name: "capture_mode", Kind: properties.KindList, Label: "Mode", Default: "any_fullscreen", Options: []properties.Option{
				{Label: "Capture any fullscreen application", Value: "any_fullscreen"},
				{Label: "Capture specific window", Value: "window"},
				{Label: "Capture foreground window with hotkey", Value: "hotkey"},
			}},
			{Name: "window", Kind: properties.KindText, Label: "Window"},
			{Name: "capture_cursor", Kind: properties.KindBool, Label: "Capture cursor", Default: true},
		},
	}
	image := TypeSpec{
		Schema: properties.Schema{
			{Name: "file", Kind: properties.KindText, Label: "Image file"},
			{Name: "unload", Kind: properties.KindBool, Label: "Unload when not showing", Default: false},
		},
	}
	color := TypeSpec{
		Schema: properties.Schema{
			{Name: "color", Kind: properties.KindColor, Label: "Color", Default: float64(0xFFFFFFFF)},
			{Name: "width", Kind: properties.KindInt, Label: "Width", Default: float64(1920), Min: wMin, Max: wMax},
			{Name: "height", Kind: properties.KindInt, Label: "Height", Default: float64(1080), Min: wMin, Max: wMax},
		},
	}

	types := map[string]TypeSpec{
		"browser_source": browser,
		"game_capture":   game,
		"image_source":   image,
		"color_source":   color,
	}
	for _, id := range []string{"dshow_input", "av_capture_input", "v4l2_input"} {
		types[id] = TypeSpec{Schema: videoDeviceSchema()}
	}
	for _, id := range []string{
		"wasapi_input_capture", "coreaudio_input_capture", "pulse_input_capture",
		"wasapi_output_capture", "coreaudio_output_capture", "pulse_output_capture",
	} {
		types[id] = TypeSpec{HasAudio: true, Schema: audioDeviceSchema()}
	}
	return types
}

func ptr(f float64) *float64 { return &f }
