// Package instance models the compute instances the dashboard manages and
// the provider operations fleetgate gates. The provider itself is an
// external collaborator: fleetgate decides whether a call may happen, the
// provider does the actual work.
package instance

import "context"

// Instance is one compute instance as reported by the provider. The
// listing is a pass-through; fleetgate adds no interpretation.
type Instance struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	State string `json:"state"`
	Zone  string `json:"zone"`
}

// Provider is the upstream compute API. Reboot must be idempotent at the
// resource-identity level: repeating a reboot for the same instance after
// an ambiguous timeout is a no-op, not a double reboot.
type Provider interface {
	List(ctx context.Context) ([]Instance, error)
	Reboot(ctx context.Context, instanceID string) error
}
