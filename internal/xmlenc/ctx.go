package xmlenc

import (
	"github.com/sirupsen/logrus"

	"github.com/kenneth/xmlenc-gateway/internal/keymanager"
)

// Ctx is the process-level handle a caller holds for the lifetime of
// many encrypt/decrypt operations. It is not reentrant across concurrent
// operations that share a KeyManager resolver unless that resolver
// itself is safe for concurrent use.
type Ctx struct {
	// EncryptionMethod is the default Algorithm URI used when a template
	// omits EncryptionMethod.
	EncryptionMethod string

	// IgnoreType, if true, disables XML splicing entirely even when Type
	// is a recognized URI; the caller inspects Result.Buffer instead.
	IgnoreType bool

	// KeyManager resolves key material when an operation is not given a
	// key directly. Required for any operation that omits its key
	// argument.
	KeyManager keymanager.Resolver

	// Logger receives structured diagnostics for every operation. Falls
	// back to logrus's standard logger when nil.
	Logger *logrus.Logger
}

func (c *Ctx) logger() *logrus.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return logrus.StandardLogger()
}
