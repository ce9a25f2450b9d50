package auth

// Identity is the authenticated subject a session resolves to.
// It carries only an opaque application identifier.
type Identity struct {
	ID string `json:"id"`
}

// IsZero reports whether the identity is unset.
func (i Identity) IsZero() bool {
	return i.ID == ""
}

// Credential is what a client presents at login.
type Credential struct {
	Identifier string
	Secret     string
}
