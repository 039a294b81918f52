package secure

import (
	"errors"
	"sync"

	"github.com/awnumar/memguard"
)

// ErrDestroyed is returned when a destroyed payload is used.
var ErrDestroyed = errors.New("secure payload already destroyed")

// Payload holds credential material encrypted in memory between the moment
// it is read from a secret store and the moment a hook consumes it.
// The plaintext only exists inside Use callbacks, in a locked buffer that is
// wiped when the callback returns.
type Payload struct {
	mu        sync.Mutex
	enclave   *memguard.Enclave
	empty     bool
	destroyed bool
}

// Seal moves data into an encrypted enclave. memguard wipes data once it has
// been copied, so callers must not reuse the slice.
func Seal(data []byte) *Payload {
	if len(data) == 0 {
		return &Payload{empty: true}
	}
	return &Payload{enclave: memguard.NewEnclave(data)}
}

// Use decrypts the payload into a locked buffer and passes its bytes to fn.
// The slice is only valid for the duration of fn and must not be retained.
func (p *Payload) Use(fn func(plaintext []byte) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.destroyed {
		return ErrDestroyed
	}
	if p.empty {
		return fn([]byte{})
	}

	locked, err := p.enclave.Open()
	if err != nil {
		return err
	}
	defer locked.Destroy()

	return fn(locked.Bytes())
}

// Destroy drops the enclave. It is safe to call more than once.
func (p *Payload) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enclave = nil
	p.destroyed = true
}

// Wipe zeroes b in place.
func Wipe(b []byte) {
	memguard.WipeBytes(b)
}

// Purge destroys all memguard state. Call it once before the process exits.
func Purge() {
	memguard.Purge()
}
