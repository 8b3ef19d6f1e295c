//go:build tools

// Package tools pins build-time tool dependencies so `go mod tidy` does
// not drop them; none of these are imported by the running binaries.
package tools

import (
	_ "github.com/go-gremlins/gremlins"
)
