package rotation

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, payload []byte) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &out))
	return out
}

func TestPasswordGenerator(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name    string
		gen     *PasswordGenerator
		current string
		field   string
		length  int
		charset string
	}{
		{
			name:    "defaults",
			gen:     NewPasswordGenerator(),
			current: `{"username":"app","password":"old","host":"db.internal","port":5432}`,
			field:   "password",
			length:  DefaultPasswordLength,
			charset: DefaultCharset,
		},
		{
			name:    "zero value falls back to defaults",
			gen:     &PasswordGenerator{},
			current: `{"username":"app","password":"old"}`,
			field:   "password",
			length:  DefaultPasswordLength,
			charset: DefaultCharset,
		},
		{
			name:    "custom field, length and charset",
			gen:     &PasswordGenerator{Field: "api_key", Length: 64, Charset: "abc"},
			current: `{"api_key":"old"}`,
			field:   "api_key",
			length:  64,
			charset: "abc",
		},
		{
			name:    "field is added when absent",
			gen:     &PasswordGenerator{Length: 8},
			current: `{"username":"app"}`,
			field:   "password",
			length:  8,
			charset: DefaultCharset,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			out, err := tt.gen.Generate(ctx, []byte(tt.current))
			require.NoError(t, err)

			before := decode(t, []byte(tt.current))
			after := decode(t, out)

			value, ok := after[tt.field].(string)
			require.True(t, ok)
			assert.Len(t, value, tt.length)
			assert.NotEqual(t, before[tt.field], value)
			for _, c := range value {
				assert.True(t, strings.ContainsRune(tt.charset, c), "unexpected character %q", c)
			}
			for k, v := range before {
				if k != tt.field {
					assert.Equal(t, v, after[k], "field %s must be carried over", k)
				}
			}
		})
	}
}

func TestPasswordGeneratorProducesDistinctValues(t *testing.T) {
	t.Parallel()

	gen := NewPasswordGenerator()
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		out, err := gen.Generate(context.Background(), []byte(`{"password":"x"}`))
		require.NoError(t, err)
		p := decode(t, out)["password"].(string)
		assert.False(t, seen[p], "duplicate password generated")
		seen[p] = true
	}
}

func TestGeneratorsRejectNonObjectPayload(t *testing.T) {
	t.Parallel()

	for _, payload := range []string{"plain-text-password", "null", `["a"]`, ""} {
		_, err := NewPasswordGenerator().Generate(context.Background(), []byte(payload))
		require.Error(t, err)
		assert.NotContains(t, err.Error(), "plain-text-password", "payload must not leak into errors")

		_, err = (&SuffixGenerator{}).Generate(context.Background(), []byte(payload))
		require.Error(t, err)
	}
}

func TestPasswordGeneratorRejectsOversizedCharset(t *testing.T) {
	t.Parallel()

	gen := &PasswordGenerator{Charset: strings.Repeat("a", 300)}
	_, err := gen.Generate(context.Background(), []byte(`{}`))
	assert.ErrorContains(t, err, "charset too large")
}

func TestSuffixGenerator(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	out, err := (&SuffixGenerator{}).Generate(ctx, []byte(`{"username":"app","password":"pw"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"username":"app","password":"pw_ROTATED"}`, string(out))

	out, err = (&SuffixGenerator{Field: "token", Suffix: "-2"}).Generate(ctx, []byte(`{"token":"abc"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"token":"abc-2"}`, string(out))

	_, err = (&SuffixGenerator{}).Generate(ctx, []byte(`{"username":"app"}`))
	assert.ErrorContains(t, err, `no "password" field`)

	_, err = (&SuffixGenerator{}).Generate(ctx, []byte(`{"password":42}`))
	assert.ErrorContains(t, err, "is not a string")
}
