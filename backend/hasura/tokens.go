package hasura

import (
	"context"
	"fmt"
	"time"

	"github.com/machinebox/graphql"
	"github.com/stephnangue/notary/auth/token"
)

const (
	fetchTokensQuery = `
		query getTokens($user: uuid, $type: Int) {
			tokens(where: { user: { _eq: $user }, type: { _eq: $type } }) {
				token
				type
				expires
				user
			}
		}`

	insertTokenMutation = `
		mutation CreateToken($object: tokens_insert_input!) {
			insert_tokens_one(object: $object) {
				token
				type
				expires
				user
			}
		}`

	deleteTokenMutation = `
		mutation DeleteToken($token: String) {
			delete_tokens(where: { token: { _eq: $token } }) {
				returning {
					token
					type
					expires
					user
				}
			}
		}`
)

// tokenRow is the tokens table row as the engine serves it. Expires is a
// timestamptz, which Hasura renders as RFC 3339.
type tokenRow struct {
	Token   string `json:"token"`
	Type    int    `json:"type"`
	Expires string `json:"expires"`
	User    string `json:"user"`
}

func (r *tokenRow) toToken() (*token.Token, error) {
	expires, err := time.Parse(time.RFC3339, r.Expires)
	if err != nil {
		return nil, fmt.Errorf("unparseable token expiry %q: %w", r.Expires, err)
	}
	return &token.Token{
		Value:   r.Token,
		Type:    token.Type(r.Type),
		Expires: expires,
		Owner:   r.User,
	}, nil
}

// FetchTokens returns every stored token for (owner, typ), expired ones
// included. The caller decides what is still live.
func (c *Client) FetchTokens(ctx context.Context, owner string, typ token.Type) ([]*token.Token, error) {
	req := graphql.NewRequest(fetchTokensQuery)
	req.Var("user", owner)
	req.Var("type", int(typ))

	var resp struct {
		Tokens []tokenRow `json:"tokens"`
	}
	if err := c.run(ctx, req, &resp); err != nil {
		return nil, err
	}

	tokens := make([]*token.Token, 0, len(resp.Tokens))
	for i := range resp.Tokens {
		t, err := resp.Tokens[i].toToken()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, nil
}

// InsertToken persists a new token and returns the stored row.
func (c *Client) InsertToken(ctx context.Context, t *token.Token) (*token.Token, error) {
	req := graphql.NewRequest(insertTokenMutation)
	req.Var("object", map[string]interface{}{
		"token":   t.Value,
		"type":    int(t.Type),
		"expires": t.Expires.Format(time.RFC3339),
		"user":    t.Owner,
	})

	var resp struct {
		Inserted tokenRow `json:"insert_tokens_one"`
	}
	if err := c.run(ctx, req, &resp); err != nil {
		return nil, err
	}
	return resp.Inserted.toToken()
}

// DeleteToken removes a token by its value. Deleting a token that is
// already gone returns (nil, nil).
func (c *Client) DeleteToken(ctx context.Context, value string) (*token.Token, error) {
	req := graphql.NewRequest(deleteTokenMutation)
	req.Var("token", value)

	var resp struct {
		Deleted struct {
			Returning []tokenRow `json:"returning"`
		} `json:"delete_tokens"`
	}
	if err := c.run(ctx, req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Deleted.Returning) == 0 {
		return nil, nil
	}
	return resp.Deleted.Returning[0].toToken()
}
