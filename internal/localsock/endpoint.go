// File: internal/localsock/endpoint.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package localsock

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/momentics/ipcdrop/api"
)

const (
	pipePrefix   = `\\.\pipe\`
	socketSuffix = ".sock"
	maxNameLen   = 100
)

// Endpoint is a named rendezvous point for one listener.
type Endpoint struct {
	name string
}

// NewEndpoint validates name and returns its endpoint.
func NewEndpoint(name string) (Endpoint, error) {
	switch {
	case name == "":
		return Endpoint{}, fmt.Errorf("%w: empty endpoint name", api.ErrInvalidArgument)
	case len(name) > maxNameLen:
		return Endpoint{}, fmt.Errorf("%w: endpoint name longer than %d bytes", api.ErrInvalidArgument, maxNameLen)
	case strings.ContainsAny(name, "/\\\x00"):
		return Endpoint{}, fmt.Errorf("%w: endpoint name %q contains a path separator or NUL", api.ErrInvalidArgument, name)
	}
	return Endpoint{name: name}, nil
}

// MustEndpoint is NewEndpoint for constant names.
func MustEndpoint(name string) Endpoint {
	ep, err := NewEndpoint(name)
	if err != nil {
		panic(err)
	}
	return ep
}

// ParseAddr maps any spelling of an endpoint back to it: a bare name, an
// abstract address ("@name"), a named pipe path (`\\.\pipe\name`) or a
// socket file in the socket directory.
func ParseAddr(addr string) (Endpoint, error) {
	switch {
	case strings.HasPrefix(addr, "@"):
		return NewEndpoint(addr[1:])
	case len(addr) > len(pipePrefix) && strings.EqualFold(addr[:len(pipePrefix)], pipePrefix):
		return NewEndpoint(addr[len(pipePrefix):])
	case strings.HasSuffix(addr, socketSuffix) && strings.ContainsAny(addr, `/\`):
		if filepath.Clean(filepath.Dir(addr)) != filepath.Clean(socketDir()) {
			return Endpoint{}, fmt.Errorf("%w: %s is outside the socket directory %s", api.ErrInvalidArgument, addr, socketDir())
		}
		return NewEndpoint(strings.TrimSuffix(filepath.Base(addr), socketSuffix))
	default:
		return NewEndpoint(addr)
	}
}

// Name returns the symbolic name.
func (e Endpoint) Name() string { return e.name }

// IsZero reports whether e was never initialized.
func (e Endpoint) IsZero() bool { return e.name == "" }

// Addr returns the platform address listeners bind and clients dial.
func (e Endpoint) Addr() string { return addrFor(e.name) }

func (e Endpoint) String() string { return e.Addr() }

// Namespaced reports whether this platform has a namespace for endpoints
// that needs no filesystem entry.
func Namespaced() bool { return namespaced }
