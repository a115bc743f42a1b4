// File: internal/localsock/errors.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package localsock

import "github.com/momentics/ipcdrop/api"

func addrInUse(addr string, cause error) error {
	e := api.Wrap(api.ErrCodeAddrInUse, api.ErrAddrInUse, "bind "+addr).WithContext("addr", addr)
	if cause != nil {
		e.WithContext("cause", cause.Error())
	}
	return e
}

func connectRefused(addr string, cause error) error {
	e := api.Wrap(api.ErrCodeConnectRefused, api.ErrConnectRefused, "connect "+addr).WithContext("addr", addr)
	if cause != nil {
		e.WithContext("cause", cause.Error())
	}
	return e
}

func writeFailed(cause error) error {
	return api.Wrap(api.ErrCodeWriteFailed, api.ErrWriteFailed, "write").WithContext("cause", cause.Error())
}
