package listener

import "context"

// Listener is one network frontend of the server. Start blocks until the
// context is cancelled or serving fails; Stop is safe to call twice.
type Listener interface {
	Addr() string
	Start(ctx context.Context) error
	Stop() error
	Type() string
}
