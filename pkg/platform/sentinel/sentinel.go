package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) and services translate them into protocol errors:
//   - ErrNotFound: no record at the derived key
//   - ErrAlreadyExists: a record already occupies the derived key
//   - ErrLockTimeout: the store could not serialize the operation in time
//   - ErrUnavailable: backing service temporarily unavailable
//
// Validation failures belong in pkg/domain, not here.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrLockTimeout   = errors.New("lock timeout")
	ErrUnavailable   = errors.New("unavailable")
)
