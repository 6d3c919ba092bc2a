package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashPasswords(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, hashPasswords(strings.NewReader("password123\r\n\nsecond\n"), &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2, "blank lines are skipped")
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(lines[0]), []byte("password123")))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(lines[1]), []byte("second")))
}

func TestHashPasswordsRequiresInput(t *testing.T) {
	err := hashPasswords(strings.NewReader("\n"), &bytes.Buffer{})
	assert.Error(t, err)
}
