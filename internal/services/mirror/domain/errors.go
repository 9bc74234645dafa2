package domain

import (
	"errors"
)

// ErrLeaseHeld signals another process is already mirroring
var ErrLeaseHeld = errors.New("mirror: run lease already held")
