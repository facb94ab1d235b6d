package auth

import "context"

// User is the read-only view of an account owned by the remote store.
// This core never mutates a user except at creation.
type User struct {
	UUID      string `json:"uuid"`
	FirstName string `json:"fname"`
	LastName  string `json:"lname"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
	Status    Status `json:"status"`
}

// Directory resolves users from the remote store.
// A missing user is (nil, nil), never an error: the caller decides whether
// absence is benign or fatal. Errors mean the store could not answer.
type Directory interface {
	UserByUUID(ctx context.Context, uuid string) (*User, error)
}
