package authz

import "strconv"

// Caller is the authenticated identity resolved once at the HTTP boundary and
// passed into lifecycle operations.
type Caller struct {
	ID      int
	Email   string
	IsAdmin bool
}

func (c Caller) Authenticated() bool { return c.ID > 0 }

func (c Caller) Subject() string { return strconv.Itoa(c.ID) }

// CallerFromSubject parses the token subject back into a user id.
func CallerFromSubject(sub, email string, isAdmin bool) (Caller, bool) {
	id, err := strconv.Atoi(sub)
	if err != nil || id <= 0 {
		return Caller{}, false
	}
	return Caller{ID: id, Email: email, IsAdmin: isAdmin}, true
}
