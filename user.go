package oauth

// User is the wire representation of a record owned by the remote
// user-directory service. Password carries the bcrypt digest, never
// plaintext. Attempts is nil for accounts that have never failed a login;
// treat nil as zero.
type User struct {
	ID        int64    `json:"id"`
	Username  string   `json:"username"`
	Password  string   `json:"password,omitempty"`
	FirstName string   `json:"first_name,omitempty"`
	LastName  string   `json:"last_name,omitempty"`
	Email     string   `json:"email,omitempty"`
	Enabled   bool     `json:"enabled"`
	Attempts  *int     `json:"attempts,omitempty"`
	Roles     []string `json:"roles,omitempty"`
}

// FailedAttempts reports the consecutive failed login count with the
// absent-means-zero semantics of the directory schema.
func (u *User) FailedAttempts() int {
	if u.Attempts == nil {
		return 0
	}
	return *u.Attempts
}

// SetFailedAttempts records the counter, materializing the field when the
// directory never stored one.
func (u *User) SetFailedAttempts(n int) {
	u.Attempts = &n
}

// Principal identifies the subject of an authentication outcome. Client is
// set when the authenticated party is the OAuth client itself rather than an
// end user; the login event handler skips those to avoid double-processing
// non-login success events.
type Principal struct {
	Username string
	Client   bool
}
