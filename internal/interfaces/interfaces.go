// Package interfaces defines common interface types used across the application.
package interfaces

import "github.com/virtualwinds/winds/internal/status"

// ProviderManager defines the interface for managing forecast providers
type ProviderManager interface {
	StartProviders() error
	Statuses() map[string]*status.Status
}
