package studio

// State is the switcher state derived from the Program and Preview slots.
type State string

const (
	StateIdle       State = "idle"
	StateHasPreview State = "has_preview"
	StateHasProgram State = "has_program"
	StateHasBoth    State = "has_both"
)

// SwitchState holds the Program and Preview scene names. An empty string
// means the slot is unset. Program and Preview never name the same scene.
type SwitchState struct {
	Program string `json:"program"`
	Preview string `json:"preview"`
}

// State returns the switcher state for the current slots.
func (s SwitchState) State() State {
	switch {
	case s.Program != "" && s.Preview != "":
		return StateHasBoth
	case s.Program != "":
		return StateHasProgram
	case s.Preview != "":
		return StateHasPreview
	default:
		return StateIdle
	}
}

// forget clears any slot that refers to name.
func (s *SwitchState) forget(name string) {
	if s.Program == name {
		s.Program = ""
	}
	if s.Preview == name {
		s.Preview = ""
	}
}
