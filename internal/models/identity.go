package models

// Identity is the acting user, resolved at the HTTP boundary and passed
// explicitly into the pipeline. Nothing below the handlers reads session
// state.
type Identity struct {
	UserID      string
	DisplayName string
}
