package redact

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	t.Run("env var value", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "sk-ant-supersecret12345678")
		got := String("request failed with key sk-ant-supersecret12345678 attached")
		assert.NotContains(t, got, "supersecret")
		assert.Contains(t, got, Redacted)
	})

	t.Run("bearer header", func(t *testing.T) {
		got := String("Authorization: Bearer abc.def.ghi")
		assert.Equal(t, "Authorization: Bearer "+Redacted, got)
	})

	t.Run("x-api-key header", func(t *testing.T) {
		got := String("x-api-key: 12345abcdef")
		assert.Equal(t, "x-api-key: "+Redacted, got)
	})

	t.Run("url query params", func(t *testing.T) {
		got := String("GET https://api.example.com/v1?api_key=zzz&depth=2")
		assert.NotContains(t, got, "zzz")
		assert.Contains(t, got, "depth=2")
	})

	t.Run("sk- style keys", func(t *testing.T) {
		got := String("using sk-abcdefghijklmnopqrstuvwx today")
		assert.NotContains(t, got, "sk-abcdefghijklmnopqrstuvwx")
	})

	t.Run("prefixed env var", func(t *testing.T) {
		t.Setenv("TRIBUNAL_LEDGER_TOKEN", "longtokenvalue99")
		got := String("ledger auth longtokenvalue99 rejected")
		assert.NotContains(t, got, "longtokenvalue99")
	})

	t.Run("plain text untouched", func(t *testing.T) {
		in := "two reviewers disagreed on item 3"
		assert.Equal(t, in, String(in))
	})
}

func TestError(t *testing.T) {
	assert.Equal(t, "", Error(nil))
	got := Error(errors.New("x-api-key: abc123 rejected"))
	assert.NotContains(t, got, "abc123")
}
