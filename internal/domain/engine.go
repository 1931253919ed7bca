package domain

import "context"

// Engine is the staged-filesystem surface of an external transcoder. Names
// are flat strings in a single namespace. Implementations are not required
// to be re-entrant; callers issue at most one Execute at a time.
type Engine interface {
	Stage(ctx context.Context, name string, data []byte) error
	Execute(ctx context.Context, args []string) error
	ReadStaged(ctx context.Context, name string) ([]byte, error)
	// Unstage is best-effort; removing a name that was never staged may fail.
	Unstage(ctx context.Context, name string) error
}
