package media

import "errors"

// ErrProviderUnavailable is reported when the running platform has no
// media session provider implementation.
var ErrProviderUnavailable = errors.New("no media session provider on this platform")

// SystemProvider returns the platform media session provider. The
// system transport-controls bridge is a platform collaborator; on
// platforms without one the service runs in spectrum-only mode.
func SystemProvider() (Provider, error) {
	return nil, ErrProviderUnavailable
}
