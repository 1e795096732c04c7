package domain

// RequestState is the lifecycle marker of the most recent fetch attempt
type RequestState int

const (
	Idle RequestState = iota
	Loading
	Success
	Failed
)

func (s RequestState) String() string {
	switch s {
	case Loading:
		return "loading"
	case Success:
		return "success"
	case Failed:
		return "failed"
	default:
		return "idle"
	}
}

func (s RequestState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Snapshot is a read-only copy of a lookup's state plus derived UI flags.
type Snapshot struct {
	Query         string         `json:"query"`
	Units         UnitSystem     `json:"units"`
	State         RequestState   `json:"state"`
	Message       string         `json:"message,omitempty"`
	Report        *WeatherReport `json:"report,omitempty"`
	Card          *Card          `json:"card,omitempty"`
	ShowClear     bool           `json:"show_clear"`
	CanSubmit     bool           `json:"can_submit"`
	InputDisabled bool           `json:"input_disabled"`
}

// ErrorHint accompanies every error banner
const ErrorHint = "Try checking the city name spelling or your internet connection."
