package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runRootCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return runRootCommandWithInput(t, "", args...)
}

func runRootCommandWithInput(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	buf := &bytes.Buffer{}
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	_, err := rootCmd.ExecuteC()
	rootCmd.SetArgs(nil)
	return strings.TrimSpace(buf.String()), err
}

// resetFlags restores flag variables between command runs; cobra keeps them
// in package state.
func resetFlags() {
	verbose = false
	decodeJSON = false
	chatAudio, chatMime = "", ""
	historyTrace, historyRole, historyLimit, historyJSON = "", "", 20, false
	statsJSON = false
	doctorFix = false
}

// isolateHome points HOME and CREATORHOOK_HOME at a temp dir and clears
// variables config.Load reads.
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
		"CREATORHOOK_CHAT_COOLDOWN",
		"CREATORHOOK_RELAY_ENABLED",
		"WEBHOOK_URL",
		"USER_ID",
		"URL",
		"KAFKA_BROKERS",
		"CREATORHOOK_RELAY_KAFKA_BROKERS",
		"ENABLED",
	} {
		t.Setenv(key, "")
		_ = os.Unsetenv(key)
	}
	return home
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
