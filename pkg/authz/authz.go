// Package authz declares the authorization oracle capability. Policy
// lives outside the core; the engine only asks yes/no before writes.
package authz

import "context"

// Actor identifies who is performing an operation.
type Actor struct {
	ID   string
	Role string
}

// Operation names a guarded write.
type Operation string

const (
	OpReserve     Operation = "reservation.create"
	OpRelease     Operation = "reservation.release"
	OpConfirm     Operation = "reservation.confirm"
	OpConsume     Operation = "reservation.consume"
	OpMoveProject Operation = "project.move"
	OpScan        Operation = "scan.apply"
)

// Oracle answers authorization questions. Implementations live outside
// the core (role service, policy engine); the core never inspects roles.
type Oracle interface {
	May(ctx context.Context, actor Actor, op Operation, subject string) (bool, error)
}

// AllowAll grants everything. Used by workers acting on the system's
// own behalf and by tests.
type AllowAll struct{}

// May always returns true.
func (AllowAll) May(ctx context.Context, actor Actor, op Operation, subject string) (bool, error) {
	return true, nil
}
