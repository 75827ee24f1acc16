package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEnvHelpers(t *testing.T) {
	t.Setenv("TEST_STR", "value")
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_BAD_INT", "-3")
	t.Setenv("TEST_INT64", "9000000000")
	t.Setenv("TEST_DURATION", "45s")
	t.Setenv("TEST_BAD_DURATION", "soon")
	t.Setenv("TEST_BOOL", "TRUE")

	assert.Equal(t, "value", Env("TEST_STR", "def"))
	assert.Equal(t, "def", Env("TEST_MISSING", "def"))
	assert.Equal(t, 42, EnvInt("TEST_INT", 1))
	assert.Equal(t, 1, EnvInt("TEST_BAD_INT", 1))
	assert.Equal(t, int64(9000000000), EnvInt64("TEST_INT64", 1))
	assert.Equal(t, 45*time.Second, EnvDuration("TEST_DURATION", time.Second))
	assert.Equal(t, time.Second, EnvDuration("TEST_BAD_DURATION", time.Second))
	assert.True(t, EnvBool("TEST_BOOL", false))
	assert.True(t, EnvBool("TEST_MISSING", true))
}

func TestDedup(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, Dedup([]string{" a", "b", "a ", ""}))
}
