package models

// Caller is the authorization result the HTTP layer hands to services. The
// services never look identities up themselves.
type Caller struct {
	UserID  string
	IsAdmin bool
}

func (c Caller) Authenticated() bool {
	return c.UserID != ""
}
