package cliconfig

import (
	"os"
	"path/filepath"
	"testing"
)

// isolateHome points HOME and CREATORHOOK_HOME at a fresh temp dir and clears
// the variables config.Load reads.
func isolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("CREATORHOOK_HOME", home)
	for _, key := range []string{
		"CREATORHOOK_CONFIG",
		"CREATORHOOK_ENV_FILE",
		"CREATORHOOK_WEBHOOK_URL",
		"CREATORHOOK_WEBHOOK_USER_ID",
		"CREATORHOOK_PATHS_TIMELINE_DB",
		"WEBHOOK_URL",
		"USER_ID",
		"URL",
		"KAFKA_BROKERS",
		"ENABLED",
		"CREATORHOOK_RELAY_ENABLED",
		"CREATORHOOK_RELAY_KAFKA_BROKERS",
	} {
		t.Setenv(key, "")
		_ = os.Unsetenv(key)
	}
	return home
}

func writeHomeConfig(t *testing.T, home, content string) string {
	t.Helper()
	dir := filepath.Join(home, ".creatorhook")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
