// Package hasura talks to the Hasura GraphQL engine that owns the users
// and tokens tables. Every call here runs with the admin secret: token
// management is what authentication is built out of, so it cannot itself
// wait on an authorization webhook round-trip.
package hasura

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/machinebox/graphql"
	"github.com/stephnangue/notary/logger"
)

const defaultTimeout = 10 * time.Second

// Config holds the connection parameters for the GraphQL engine.
type Config struct {
	// Endpoint is the full /v1/graphql URL.
	Endpoint string

	// AdminSecret is sent as x-hasura-admin-secret on every request.
	AdminSecret string

	// Timeout bounds each round-trip.
	Timeout time.Duration
}

// Client is a thin wrapper over the GraphQL client that injects the admin
// secret and the per-call timeout.
type Client struct {
	gql         *graphql.Client
	adminSecret string
	timeout     time.Duration
	logger      logger.Logger
}

// NewClient creates a client for the given engine.
func NewClient(config Config, log logger.Logger) (*Client, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("hasura endpoint must not be empty")
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	httpClient := &http.Client{Timeout: timeout}

	return &Client{
		gql:         graphql.NewClient(config.Endpoint, graphql.WithHTTPClient(httpClient)),
		adminSecret: config.AdminSecret,
		timeout:     timeout,
		logger:      log,
	}, nil
}

// run executes one request with admin headers and the client timeout.
// Errors out of here are transport or engine failures; "no rows" never
// comes back as an error from Hasura, it comes back as an empty list.
func (c *Client) run(ctx context.Context, req *graphql.Request, resp interface{}) error {
	if c.adminSecret != "" {
		req.Header.Set("x-hasura-admin-secret", c.adminSecret)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.gql.Run(ctx, req, resp); err != nil {
		return fmt.Errorf("hasura request failed: %w", err)
	}
	return nil
}
