package courier

import "context"

// Crypto is the opaque cryptographic capability executors depend on.
// Implementations wrap the application's primitive library; courier never
// implements primitives itself.
type Crypto interface {
	// Sign produces a detached signature over message with the named key.
	Sign(ctx context.Context, keyID string, message []byte) ([]byte, error)

	// Verify checks a detached signature. A nil error means the signature
	// is valid for the message and key.
	Verify(ctx context.Context, keyID string, message, signature []byte) error

	// Encrypt seals plaintext for the given recipient key.
	Encrypt(ctx context.Context, recipientKeyID string, plaintext []byte) ([]byte, error)

	// Decrypt opens ciphertext addressed to a local key.
	Decrypt(ctx context.Context, keyID string, ciphertext []byte) ([]byte, error)
}

// KeyStore is the opaque key-pair storage capability: generate, fetch,
// and clear keys by name. Key material never leaves the implementation
// except through the opaque handle strings used by Crypto.
type KeyStore interface {
	// Generate creates (or replaces) the named key pair and returns its
	// public half.
	Generate(ctx context.Context, name string) (publicKey []byte, err error)

	// Fetch returns the public half of the named key pair.
	// Returns an error if the key does not exist.
	Fetch(ctx context.Context, name string) (publicKey []byte, err error)

	// Clear removes the named key pair.
	Clear(ctx context.Context, name string) error
}
