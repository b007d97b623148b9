package job

import (
	"log/slog"

	"github.com/xraph/courier"
	"github.com/xraph/courier/transport"
)

// Deps bundles the external collaborators an executor may need. The runner
// passes the same bundle to every executor; unused fields stay nil. Keeping
// collaborators here — instead of in globals — is what makes executors
// independently testable.
type Deps struct {
	// Transport is the network client for server calls.
	Transport *transport.Client

	// Crypto signs, verifies, seals, and opens message payloads.
	Crypto courier.Crypto

	// KeyStore generates, fetches, and clears local key pairs.
	KeyStore courier.KeyStore

	// Logger is the structured logger for executor-level logging.
	Logger *slog.Logger
}

// WithLogger returns a copy of the bundle with the given logger, used by
// the runner to attach per-lane context attributes.
func (d Deps) WithLogger(l *slog.Logger) Deps {
	d.Logger = l
	return d
}
