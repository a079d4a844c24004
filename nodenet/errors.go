package nodenet

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Wrap with fmt.Errorf("...: %w", ErrX) so callers can
// use errors.Is against these markers while still getting a useful message.
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrLockConflict    = errors.New("lock conflict")
	ErrVersionMismatch = errors.New("version mismatch")
	ErrSnapshotCorrupt = errors.New("snapshot corruption")
)

// NotFoundf builds a NotFound error for the given kind/uid.
func NotFoundf(kind, uid string) error {
	return fmt.Errorf("%s %q: %w", kind, uid, ErrNotFound)
}

// InvalidArgumentf builds an InvalidArgument error.
func InvalidArgumentf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrInvalidArgument)...)
}

// NodenetLockException reports an attempt to acquire a lock that is
// already held.
type NodenetLockException struct {
	Name string
}

func (e *NodenetLockException) Error() string {
	return fmt.Sprintf("lock %q is already locked", e.Name)
}

func (e *NodenetLockException) Unwrap() error {
	return ErrLockConflict
}

// UserPrompt is not an error. It is the explicit suspension signal
// NetAPI.NotifyUser and NetAPI.AskUserForParameter set on the Nodenet,
// deactivating the runner; the caller resumes by clearing the prompt.
type UserPrompt struct {
	NodeUID string        `json:"node_uid"`
	Message string        `json:"msg"`
	Options []interface{} `json:"options,omitempty"`
}
