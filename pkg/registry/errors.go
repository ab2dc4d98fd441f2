package registry

import "errors"

// ErrNotRegistered means the registry has no record of the service.
var ErrNotRegistered = errors.New("service not registered")
