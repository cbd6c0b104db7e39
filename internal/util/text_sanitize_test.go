package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeText(t *testing.T) {
	cases := map[string]string{
		"ab\x00cd\x01\x02\n\txy": "abcd\n\txy",
		"  precio\x7f 10\u0085 ": "precio 10",
		"caf\xc3\xa9 \xff\xfeok": "café ok",
		"":                       "",
	}
	for in, want := range cases {
		assert.Equal(t, want, SanitizeText(in), "input %q", in)
	}
}
