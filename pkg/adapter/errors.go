package adapter

import "errors"

// ErrServiceNotFound means neither the registry nor the static catalog
// knows the requested service.
var ErrServiceNotFound = errors.New("service not found")
