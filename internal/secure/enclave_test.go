package secure

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealWipesSource(t *testing.T) {
	t.Parallel()

	src := []byte("super-secret-data")
	p := Seal(src)
	defer p.Destroy()

	assert.Equal(t, make([]byte, len(src)), src, "source must be wiped after sealing")

	var got string
	require.NoError(t, p.Use(func(plaintext []byte) error {
		got = string(plaintext)
		return nil
	}))
	assert.Equal(t, "super-secret-data", got)
}

func TestSealEmpty(t *testing.T) {
	t.Parallel()

	p := Seal(nil)
	n := -1
	require.NoError(t, p.Use(func(plaintext []byte) error {
		n = len(plaintext)
		return nil
	}))
	assert.Equal(t, 0, n)
}

func TestUsePropagatesCallbackError(t *testing.T) {
	t.Parallel()

	p := Seal([]byte{0x00, 0xFF, 0x10})
	defer p.Destroy()

	boom := errors.New("boom")
	assert.ErrorIs(t, p.Use(func([]byte) error { return boom }), boom)
}

func TestDestroyIsIdempotent(t *testing.T) {
	t.Parallel()

	p := Seal([]byte("value"))
	p.Destroy()
	p.Destroy()

	err := p.Use(func([]byte) error {
		t.Fatal("callback must not run after Destroy")
		return nil
	})
	assert.ErrorIs(t, err, ErrDestroyed)
}

func TestWipe(t *testing.T) {
	t.Parallel()

	b := []byte("password")
	Wipe(b)
	assert.Equal(t, make([]byte, 8), b)
}
