package config

import (
	"os"
	"testing"
	"time"
)

func TestRequireEnv(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		value     string
		shouldSet bool
		wantPanic bool
	}{
		{
			name:      "variable set",
			key:       "TEST_VAR",
			value:     "test_value",
			shouldSet: true,
			wantPanic: false,
		},
		{
			name:      "variable not set",
			key:       "TEST_VAR_MISSING",
			shouldSet: false,
			wantPanic: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.shouldSet {
				if err := os.Setenv(tt.key, tt.value); err != nil {
					t.Fatalf("failed to set env var: %v", err)
				}
				defer func() {
					if err := os.Unsetenv(tt.key); err != nil {
						t.Errorf("failed to unset env var: %v", err)
					}
				}()
			}

			if tt.wantPanic {
				defer func() {
					if r := recover(); r == nil {
						t.Errorf("requireEnv() should have panicked")
					}
				}()
			}

			result := requireEnv(tt.key)
			if !tt.wantPanic && result != tt.value {
				t.Errorf("requireEnv() = %v, want %v", result, tt.value)
			}
		})
	}
}

func TestMustDuration(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		value    string
		def      time.Duration
		expected time.Duration
	}{
		{
			name:     "valid duration",
			key:      "TEST_DURATION",
			value:    "5s",
			def:      1 * time.Second,
			expected: 5 * time.Second,
		},
		{
			name:     "invalid duration uses default",
			key:      "TEST_DURATION_INVALID",
			value:    "invalid",
			def:      10 * time.Second,
			expected: 10 * time.Second,
		},
		{
			name:     "missing variable uses default",
			key:      "TEST_DURATION_MISSING",
			value:    "",
			def:      15 * time.Second,
			expected: 15 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != "" {
				if err := os.Setenv(tt.key, tt.value); err != nil {
					t.Fatalf("failed to set env var: %v", err)
				}
				defer func() {
					if err := os.Unsetenv(tt.key); err != nil {
						t.Errorf("failed to unset env var: %v", err)
					}
				}()
			}

			result := mustDuration(tt.key, tt.def)
			if result != tt.expected {
				t.Errorf("mustDuration() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestMustBool(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		value    string
		def      bool
		expected bool
	}{
		{
			name:     "true value",
			key:      "TEST_BOOL",
			value:    "true",
			def:      false,
			expected: true,
		},
		{
			name:     "false value",
			key:      "TEST_BOOL_FALSE",
			value:    "false",
			def:      true,
			expected: false,
		},
		{
			name:     "invalid value uses default",
			key:      "TEST_BOOL_INVALID",
			value:    "invalid",
			def:      true,
			expected: true,
		},
		{
			name:     "missing variable uses default",
			key:      "TEST_BOOL_MISSING",
			value:    "",
			def:      false,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != "" {
				if err := os.Setenv(tt.key, tt.value); err != nil {
					t.Fatalf("failed to set env var: %v", err)
				}
				defer func() {
					if err := os.Unsetenv(tt.key); err != nil {
						t.Errorf("failed to unset env var: %v", err)
					}
				}()
			}

			result := mustBool(tt.key, tt.def)
			if result != tt.expected {
				t.Errorf("mustBool() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestGetenvInt(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		def      int
		expected int
	}{
		{name: "valid integer", value: "7", def: 1, expected: 7},
		{name: "invalid integer uses default", value: "seven", def: 3, expected: 3},
		{name: "missing variable uses default", value: "", def: 10, expected: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_INT", tt.value)
			if got := getenvInt("TEST_INT", tt.def); got != tt.expected {
				t.Errorf("getenvInt() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.ListenPort != ":8080" {
		t.Errorf("ListenPort = %q, want :8080", cfg.ListenPort)
	}
	if cfg.ReplayTTL != 24*time.Hour {
		t.Errorf("ReplayTTL = %v, want 24h", cfg.ReplayTTL)
	}
	if !cfg.FallbackEnabled {
		t.Error("FallbackEnabled should default to true")
	}
	if cfg.RedisEnabled() {
		t.Error("redis should be disabled without TABSTASH_REDIS_ADDR")
	}
	if cfg.BookmarksEnabled() {
		t.Error("bookmarks should be disabled without TABSTASH_BOOKMARK_FILE")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TABSTASH_LISTEN_PORT", ":9090")
	t.Setenv("TABSTASH_DB_PATH", "/data/tabs.db")
	t.Setenv("TABSTASH_REPLAY_TTL", "2h")
	t.Setenv("TABSTASH_REDIS_ADDR", "redis:6379")
	t.Setenv("TABSTASH_BOOKMARK_FILE", "/data/bookmarks.yaml")
	t.Setenv("TABSTASH_BOOKMARK_OWNER", "alice")

	cfg := Load()

	if cfg.ListenPort != ":9090" || cfg.DatabasePath != "/data/tabs.db" {
		t.Errorf("unexpected server/storage config: %+v", cfg)
	}
	if cfg.ReplayTTL != 2*time.Hour {
		t.Errorf("ReplayTTL = %v, want 2h", cfg.ReplayTTL)
	}
	if !cfg.RedisEnabled() || !cfg.BookmarksEnabled() {
		t.Error("redis and bookmarks should be enabled")
	}
	if cfg.BookmarkOwner != "alice" {
		t.Errorf("BookmarkOwner = %q, want alice", cfg.BookmarkOwner)
	}
}

func TestLoadPanicsOnInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{
			name: "bookmark file without owner",
			env:  map[string]string{"TABSTASH_BOOKMARK_FILE": "/data/bookmarks.yaml"},
		},
		{
			name: "redis password required but missing",
			env: map[string]string{
				"TABSTASH_REDIS_ADDR":              "redis:6379",
				"TABSTASH_REDIS_PASSWORD_REQUIRED": "true",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			defer func() {
				if r := recover(); r == nil {
					t.Errorf("Load() should have panicked")
				}
			}()
			Load()
		})
	}
}

func TestSplitAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "empty", input: "", expected: nil},
		{name: "single value", input: "10.0.0.0/8", expected: []string{"10.0.0.0/8"}},
		{name: "multiple values", input: "10.0.0.1, 192.168.0.0/16 ,", expected: []string{"10.0.0.1", "192.168.0.0/16"}},
		{name: "quoted values", input: `"127.0.0.1",'::1'`, expected: []string{"127.0.0.1", "::1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := splitAndTrim(tt.input)
			if len(result) != len(tt.expected) {
				t.Fatalf("splitAndTrim() = %v, want %v", result, tt.expected)
			}
			for i := range result {
				if result[i] != tt.expected[i] {
					t.Errorf("splitAndTrim()[%d] = %v, want %v", i, result[i], tt.expected[i])
				}
			}
		})
	}
}
