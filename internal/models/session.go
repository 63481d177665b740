package models

// SessionStatus is the lifecycle state of one draw action.
type SessionStatus string

const (
	StatusIdle       SessionStatus = "idle"
	StatusSpinning   SessionStatus = "spinning"
	StatusPresenting SessionStatus = "presenting"
)

// SessionSnapshot is a read-only copy of the draw session handed to the presentation layer.
type SessionSnapshot struct {
	Status             SessionStatus `json:"status"`
	Mode               DrawMode      `json:"mode"`
	PrizeID            int           `json:"prizeId"`
	Winners            []Person      `json:"winners"`
	CountdownRemaining int           `json:"countdownRemaining"`
}

// SessionEvent is published on every session transition and countdown tick.
type SessionEvent struct {
	Type    string          `json:"type"`
	Session SessionSnapshot `json:"session"`
	Error   string          `json:"error,omitempty"`
}

const (
	EventSpinning   = "spinning"
	EventTick       = "tick"
	EventPresenting = "presenting"
	EventIdle       = "idle"
	EventError      = "error"
)
