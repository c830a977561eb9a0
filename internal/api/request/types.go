package request

// RegisterRequest is the request body for creating an account
type RegisterRequest struct {
	Name   string `json:"name"`
	Email  string `json:"email,omitempty"`
	Secret string `json:"secret"`
}

// LoginRequest is the request body for creating a session. Either name or
// email identifies the player.
type LoginRequest struct {
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
	Secret string `json:"secret"`
}

// Identifier returns the email when given, otherwise the name
func (r LoginRequest) Identifier() string {
	if r.Email != "" {
		return r.Email
	}
	return r.Name
}

// ReportOutcomeRequest is the request body for recording a match result
type ReportOutcomeRequest struct {
	Result string `json:"result"`
}
