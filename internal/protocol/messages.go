package protocol

// ParamsUpdateMsg changes runtime parameters. Omitted fields keep their value.
type ParamsUpdateMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	Speed         *float64 `json:"speed,omitempty"`
	RatePerMinute *float64 `json:"rate_per_minute,omitempty"`
	WallHeight    *float64 `json:"wall_height,omitempty"`
}

// ParamsMsg reports the parameters in effect.
type ParamsMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`

	Speed         float64 `json:"speed"`
	RatePerMinute float64 `json:"rate_per_minute"`
	WallHeight    float64 `json:"wall_height"`
}

type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}

func NewError(code, msg string) ErrorMsg {
	return ErrorMsg{Type: TypeError, ProtocolVersion: Version, Code: code, Message: msg}
}
