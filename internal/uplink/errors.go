package uplink

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration: the credential (or URL) is missing, nothing was sent on the network
	ErrConfiguration = errors.New("uplink configuration error")
	// ErrConnection: the endpoint is unreachable, rejected the key, or the socket broke
	ErrConnection = errors.New("uplink connection error")
	// ErrRemoteExecution: the procedure is unknown, raised, or returned something unusable
	ErrRemoteExecution = errors.New("remote execution error")
	// ErrNotConnected is returned by Call on a client that is not in the Connected state
	ErrNotConnected = errors.New("uplink is not connected")
)

// RemoteError is a failure reported by the other side of the bridge
type RemoteError struct {
	Procedure string
	Type      string // protocol.ErrType* value
	Message   string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote call %q failed: %s: %s", e.Procedure, e.Type, e.Message)
}

// Is lets callers match any RemoteError with errors.Is(err, ErrRemoteExecution)
func (e *RemoteError) Is(target error) bool {
	return target == ErrRemoteExecution
}
