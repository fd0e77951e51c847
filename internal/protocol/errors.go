package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// World state.
	ErrWorldStopped = "E_WORLD_STOPPED"

	// Parameter layer.
	ErrBadRequest   = "E_BAD_REQUEST"
	ErrOutOfRange   = "E_OUT_OF_RANGE"
	ErrNoPermission = "E_NO_PERMISSION"
	ErrTimeout      = "E_TIMEOUT"
	ErrInternal     = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrWorldStopped:    {},
	ErrBadRequest:      {},
	ErrOutOfRange:      {},
	ErrNoPermission:    {},
	ErrTimeout:         {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
