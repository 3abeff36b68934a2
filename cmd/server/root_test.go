package main

import (
	"bytes"
	"strings"
	"testing"

	"living-science-documents/internal/auth"
	"living-science-documents/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "a-test-secret-of-enough-length"

func TestRootHasCommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "migrate", "retry-registrations", "token"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("LOG_LEVEL", "error")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"token", "--user", "7", "--role", "staff"})
	t.Cleanup(func() { rootCmd.SetOut(nil); rootCmd.SetArgs(nil) })

	require.NoError(t, rootCmd.Execute())

	p, err := auth.NewManager(testSecret).VerifyJWT(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, uint64(7), p.UserID)
	assert.True(t, p.Has(domain.RoleStaff))
}

func TestMigrateMemoryStoreIsNoop(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("STORE_DRIVER", "memory")

	rootCmd.SetArgs([]string{"migrate"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	require.NoError(t, rootCmd.Execute())
}
