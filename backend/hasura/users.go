package hasura

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-uuid"
	"github.com/machinebox/graphql"
	"github.com/stephnangue/notary/auth"
	"github.com/stephnangue/notary/logger"
	"golang.org/x/crypto/bcrypt"
)

// bcryptCost matches what existing password hashes in the store were
// written with, so old and new hashes verify the same way.
const bcryptCost = 10

const (
	userFields = `
				uuid
				fname
				lname
				email
				role
				status`

	userByUUIDQuery = `
		query getUserByUUID($uuid: uuid) {
			users(where: { uuid: { _eq: $uuid } }) {` + userFields + `
			}
		}`

	userByEmailQuery = `
		query getUserByEmail($email: String) {
			users(where: { email: { _eq: $email } }) {` + userFields + `
			}
		}`

	loginQuery = `
		query Login($email: String) {
			users(where: { email: { _eq: $email }, passhash: { _is_null: false } }) {` + userFields + `
				passhash
			}
		}`

	allUsersQuery = `
		query getAllUsers {
			users {` + userFields + `
			}
		}`

	insertUserMutation = `
		mutation CreateUser($object: users_insert_input!) {
			insert_users_one(object: $object) {` + userFields + `
			}
		}`
)

// userRow is the users table row. Passhash only comes back from the
// login query and never leaves this package.
type userRow struct {
	UUID     string `json:"uuid"`
	FName    string `json:"fname"`
	LName    string `json:"lname"`
	Email    string `json:"email"`
	Role     int    `json:"role"`
	Status   int    `json:"status"`
	Passhash string `json:"passhash"`
}

func (r *userRow) toUser() *auth.User {
	return &auth.User{
		UUID:      r.UUID,
		FirstName: r.FName,
		LastName:  r.LName,
		Email:     r.Email,
		Role:      auth.Role(r.Role),
		Status:    auth.Status(r.Status),
	}
}

// UserByUUID resolves a user by id. A missing user is (nil, nil).
func (c *Client) UserByUUID(ctx context.Context, id string) (*auth.User, error) {
	return c.queryOneUser(ctx, userByUUIDQuery, "uuid", id)
}

// UserByEmail resolves a user by email. A missing user is (nil, nil).
func (c *Client) UserByEmail(ctx context.Context, email string) (*auth.User, error) {
	return c.queryOneUser(ctx, userByEmailQuery, "email", email)
}

func (c *Client) queryOneUser(ctx context.Context, query, varName, varValue string) (*auth.User, error) {
	req := graphql.NewRequest(query)
	req.Var(varName, varValue)

	var resp struct {
		Users []userRow `json:"users"`
	}
	if err := c.run(ctx, req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Users) == 0 {
		return nil, nil
	}
	return resp.Users[0].toUser(), nil
}

// AllUsers returns every user. The healthcheck uses it as a cheap
// end-to-end probe of the engine.
func (c *Client) AllUsers(ctx context.Context) ([]*auth.User, error) {
	req := graphql.NewRequest(allUsersQuery)

	var resp struct {
		Users []userRow `json:"users"`
	}
	if err := c.run(ctx, req, &resp); err != nil {
		return nil, err
	}

	users := make([]*auth.User, 0, len(resp.Users))
	for i := range resp.Users {
		users = append(users, resp.Users[i].toUser())
	}
	return users, nil
}

// CreateUser registers a new account with a bcrypt password hash.
// The uuid is generated here rather than by the engine so the caller can
// refer to the user before the insert response arrives in logs.
func (c *Client) CreateUser(ctx context.Context, email, password string, role auth.Role, status auth.Status) (*auth.User, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("invalid role %d", role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	id, err := uuid.GenerateUUID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate user uuid: %w", err)
	}

	req := graphql.NewRequest(insertUserMutation)
	req.Var("object", map[string]interface{}{
		"uuid":     id,
		"email":    email,
		"role":     int(role),
		"status":   int(status),
		"passhash": string(hash),
	})

	var resp struct {
		Inserted userRow `json:"insert_users_one"`
	}
	if err := c.run(ctx, req, &resp); err != nil {
		return nil, err
	}

	c.logger.Info("user created",
		logger.String("user_uuid", resp.Inserted.UUID),
		logger.String("role", auth.Role(resp.Inserted.Role).String()))

	return resp.Inserted.toUser(), nil
}

// VerifyLogin checks an email and password pair. A wrong password and an
// unknown email both come back as (nil, nil); callers must not tell the
// two apart in their responses.
func (c *Client) VerifyLogin(ctx context.Context, email, password string) (*auth.User, error) {
	req := graphql.NewRequest(loginQuery)
	req.Var("email", email)

	var resp struct {
		Users []userRow `json:"users"`
	}
	if err := c.run(ctx, req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Users) == 0 {
		return nil, nil
	}

	row := resp.Users[0]
	if err := bcrypt.CompareHashAndPassword([]byte(row.Passhash), []byte(password)); err != nil {
		return nil, nil
	}
	return row.toUser(), nil
}
