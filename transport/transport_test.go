package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateAddress(t *testing.T) {
	cases := map[string]bool{
		":8080":                  true,
		"127.0.0.1:0":            true,
		"localhost:9090":         true,
		"[::1]:80":               true,
		"db-proxy.internal:5432": true,
		"":                       false,
		"8080":                   false,
		":":                      false,
		":70000":                 false,
		"-bad:80":                false,
		"under_score:80":         false,
	}

	for addr, want := range cases {
		assert.Equal(t, want, ValidateAddress(addr), addr)
	}
}
