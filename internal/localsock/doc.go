// File: internal/localsock/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package localsock provides local socket endpoints addressed by a symbolic
// name: abstract unix sockets on Linux, named pipes on Windows and socket
// files in the temp directory elsewhere. Accepted connections can be split
// into independently owned read and write halves.
package localsock
