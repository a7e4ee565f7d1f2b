package model

// UserProfile is the authenticated user as seen by the client. Filled from
// the auth handshake after normalization of the provider payload.
type UserProfile struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      Role   `json:"role"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// DisplayName returns the name shown in the room roster.
func (u *UserProfile) DisplayName() string {
	switch {
	case u == nil:
		return ""
	case u.FirstName == "" && u.LastName == "":
		return u.Email
	case u.LastName == "":
		return u.FirstName
	default:
		return u.FirstName + " " + u.LastName
	}
}
