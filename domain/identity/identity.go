package identity

// Identity represents the authenticated principal behind a connection.
// It is asserted from verified token claims, never created by this process.
type Identity struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

// FullName returns the display name used in delivery confirmations.
func (i Identity) FullName() string {
	if i.FirstName == "" && i.LastName == "" {
		return i.Email
	}
	return i.FirstName + " " + i.LastName
}
