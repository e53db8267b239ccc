package transport

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RecordRequest is a single door event from a staff device.
type RecordRequest struct {
	Gender string `json:"gender"`
	Kind   string `json:"kind"`
}

// ResetRequest closes out the night. Confirm guards against accidental taps.
type ResetRequest struct {
	Confirm bool `json:"confirm"`
}
