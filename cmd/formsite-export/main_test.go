package main

import (
	"testing"
)

func TestGetEnv(t *testing.T) {
	t.Run("returns value when set", func(t *testing.T) {
		t.Setenv("TEST_EXPORT_VAR", "custom")
		if got := getEnv("TEST_EXPORT_VAR", "default"); got != "custom" {
			t.Errorf("getEnv() = %q, want %q", got, "custom")
		}
	})

	t.Run("returns default when unset", func(t *testing.T) {
		if got := getEnv("TEST_EXPORT_UNSET", "default"); got != "default" {
			t.Errorf("getEnv() = %q, want %q", got, "default")
		}
	})
}

func TestGetEnvInt(t *testing.T) {
	t.Run("parses value when set", func(t *testing.T) {
		t.Setenv("TEST_EXPORT_INT", "42")
		if got := getEnvInt("TEST_EXPORT_INT", 7); got != 42 {
			t.Errorf("getEnvInt() = %d, want 42", got)
		}
	})

	t.Run("returns default when unset", func(t *testing.T) {
		if got := getEnvInt("TEST_EXPORT_INT_UNSET", 7); got != 7 {
			t.Errorf("getEnvInt() = %d, want 7", got)
		}
	})
}
