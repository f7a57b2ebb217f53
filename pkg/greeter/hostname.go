package greeter

import (
	"fmt"
	"os"
)

// HostnameFunc returns the name the container runtime assigned to this host.
type HostnameFunc func() (string, error)

// OSHostname reads the kernel's host name. It never does a DNS lookup.
func OSHostname() (string, error) {
	return os.Hostname()
}

// HostnameError means the host identity could not be read for a request.
type HostnameError struct {
	Err error
}

func (e *HostnameError) Error() string {
	return fmt.Sprintf("resolving hostname: %v", e.Err)
}

func (e *HostnameError) Unwrap() error { return e.Err }
func (e *HostnameError) Cause() error  { return e.Err }

func resolveHostname(f HostnameFunc) (string, error) {
	name, err := f()
	if err != nil {
		return "", &HostnameError{Err: err}
	}
	if name == "" {
		return "", &HostnameError{Err: fmt.Errorf("empty hostname")}
	}
	return name, nil
}
