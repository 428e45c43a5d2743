// Package voice captures microphone audio for speech input: a small state
// machine around permission, a recorder with a hard duration cap, and an
// ffmpeg-backed device.
package voice

// State is the voice controller state.
type State int

const (
	Idle State = iota
	RequestingPermission
	Armed
	Recording
	Transcribing
	Unsupported
	Error
)

var stateNames = [...]string{
	Idle:                 "idle",
	RequestingPermission: "requesting-permission",
	Armed:                "armed",
	Recording:            "recording",
	Transcribing:         "transcribing",
	Unsupported:          "unsupported",
	Error:                "error",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Event drives a state transition.
type Event int

const (
	EvProbeFailed Event = iota
	EvRequestPermission
	EvPermissionGranted
	EvPermissionDenied
	EvStart
	EvStop
	EvTimeout
	EvDeviceError
	EvTranscribed
	EvReset
	EvRelease
)

var eventNames = [...]string{
	EvProbeFailed:       "probe-failed",
	EvRequestPermission: "request-permission",
	EvPermissionGranted: "permission-granted",
	EvPermissionDenied:  "permission-denied",
	EvStart:             "start",
	EvStop:              "stop",
	EvTimeout:           "timeout",
	EvDeviceError:       "device-error",
	EvTranscribed:       "transcribed",
	EvReset:             "reset",
	EvRelease:           "release",
}

func (e Event) String() string {
	if e < 0 || int(e) >= len(eventNames) {
		return "unknown"
	}
	return eventNames[e]
}

// Next returns the state after ev. ok is false when ev does not apply in s,
// in which case s is returned unchanged.
//
// Unsupported absorbs every event. Error is transient: its only exit is
// EvReset, back to Idle.
func Next(s State, ev Event) (State, bool) {
	switch s {
	case Unsupported:
		return s, false
	case Error:
		if ev == EvReset {
			return Idle, true
		}
		return s, false
	}

	switch ev {
	case EvProbeFailed:
		if s == Idle {
			return Unsupported, true
		}
	case EvRequestPermission:
		if s == Idle {
			return RequestingPermission, true
		}
	case EvPermissionGranted:
		if s == RequestingPermission {
			return Armed, true
		}
	case EvPermissionDenied:
		if s == RequestingPermission {
			return Unsupported, true
		}
	case EvStart:
		if s == Armed {
			return Recording, true
		}
	case EvStop, EvTimeout:
		if s == Recording {
			return Transcribing, true
		}
	case EvDeviceError:
		if s == Recording || s == Armed || s == RequestingPermission {
			return Error, true
		}
	case EvTranscribed:
		if s == Transcribing {
			return Idle, true
		}
	case EvRelease:
		if s != Idle {
			return Idle, true
		}
	}
	return s, false
}
