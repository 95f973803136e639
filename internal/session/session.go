// Package session carries the caller identity that client-side operations
// forward to the store. It is passed explicitly; nothing reads it from
// ambient state.
package session

type Session struct {
	CustomerID string
	// Token is the opaque bearer credential issued by the auth collaborator.
	Token string
}

func (s Session) Authorization() string {
	if s.Token == "" {
		return ""
	}
	return "Bearer " + s.Token
}
