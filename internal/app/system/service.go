package system

import "context"

// Service is one startable unit of the ledger process, such as a service
// facade or the deposit reconciler. The Manager drives Start in registration
// order and Stop in reverse; both must be safe to call once each.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
