package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisplayName(t *testing.T) {
	cases := map[string]string{
		"ama.owusu+shop@example.com": "Ama Owusu Shop",
		"kwame@example.com":          "Kwame",
		"efua_stores@example.com":    "Efua Stores",
		"@example.com":               "Vendor",
		"":                           "Vendor",
	}
	for in, want := range cases {
		assert.Equal(t, want, DisplayName(in), in)
	}
}
