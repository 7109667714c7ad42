package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentUUID(t *testing.T) {
	a := ContentUUID([]byte("abc"), []byte("def"))
	b := ContentUUID([]byte("abcdef"))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, ContentUUID([]byte("abcdeg")))
	assert.Equal(t, "e80b5017-0989-50fc-58aa-d83c8c14978e", b.String())
}

func TestMd5ThenHex(t *testing.T) {
	assert.Equal(t, "900150983cd24fb0d6963f7d28e17f72", Md5ThenHex([]byte("abc")))
}
