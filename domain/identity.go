package domain

// Identity is the currently authenticated principal. A nil *Identity means
// unauthenticated; absence of identity is always the safe default.
type Identity struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// SameUser reports whether two identities refer to the same principal.
// Incidental display fields do not matter, only the logical key.
func SameUser(a, b *Identity) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID
}
