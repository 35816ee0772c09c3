package cliconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zalando/go-keyring"

	"github.com/KafClaw/creatorhook/internal/secrets"
)

func findCheck(r DoctorReport, name string) (DoctorCheck, bool) {
	for _, c := range r.Checks {
		if c.Name == name {
			return c, true
		}
	}
	return DoctorCheck{}, false
}

func TestRunDoctorWithoutWebhookFails(t *testing.T) {
	isolateHome(t)

	report, err := RunDoctor()
	if err != nil {
		t.Fatalf("run doctor: %v", err)
	}
	c, ok := findCheck(report, "config_file")
	if !ok || c.Status != DoctorWarn {
		t.Fatalf("expected config_file warning, got %#v", c)
	}
	c, ok = findCheck(report, "webhook_url")
	if !ok || c.Status != DoctorFail {
		t.Fatalf("expected webhook_url failure, got %#v", c)
	}
	if !report.HasFailures() {
		t.Fatal("expected failures without webhook")
	}
}

func TestRunDoctorHealthyConfig(t *testing.T) {
	home := isolateHome(t)
	writeHomeConfig(t, home, `{"webhook": {"url": "https://hooks.example.com/chat", "userId": "creator-1"}}`)

	report, err := RunDoctor()
	if err != nil {
		t.Fatalf("run doctor: %v", err)
	}
	if report.HasFailures() {
		t.Fatalf("expected no failures, got %#v", report)
	}
	c, ok := findCheck(report, "timeline_db")
	if !ok || c.Status != DoctorPass {
		t.Fatalf("expected timeline_db pass, got %#v", c)
	}
	if _, err := os.Stat(filepath.Join(home, ".creatorhook", "timeline.db")); err != nil {
		t.Fatalf("expected timeline db created: %v", err)
	}
}

func TestRunDoctorWithInvalidConfigFails(t *testing.T) {
	home := isolateHome(t)
	writeHomeConfig(t, home, `{"webhook":`)

	report, err := RunDoctor()
	if err != nil {
		t.Fatalf("run doctor: %v", err)
	}
	c, ok := findCheck(report, "config_load")
	if !ok || c.Status != DoctorFail {
		t.Fatalf("expected config_load failure, got %#v", report)
	}
}

func TestRunDoctorWarnsOnPlainHTTP(t *testing.T) {
	home := isolateHome(t)
	writeHomeConfig(t, home, `{"webhook": {"url": "http://hooks.example.com/chat", "userId": "u"}}`)

	report, err := RunDoctor()
	if err != nil {
		t.Fatalf("run doctor: %v", err)
	}
	c, _ := findCheck(report, "webhook_url")
	if c.Status != DoctorWarn {
		t.Fatalf("expected plain http warning, got %#v", c)
	}

	writeHomeConfig(t, home, `{"webhook": {"url": "http://127.0.0.1:5678/webhook", "userId": "u"}}`)
	report, _ = RunDoctor()
	c, _ = findCheck(report, "webhook_url")
	if c.Status != DoctorPass {
		t.Fatalf("expected loopback http to pass, got %#v", c)
	}
}

func TestRunDoctorFixMergesEnvFiles(t *testing.T) {
	home := isolateHome(t)
	legacy := filepath.Join(home, ".creatorhook", "env")
	if err := os.MkdirAll(filepath.Dir(legacy), 0o700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(legacy, []byte("export CH_DOCTOR_A=\"1\"\nCH_DOCTOR_B=2\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("CH_DOCTOR_A", "")
	t.Setenv("CH_DOCTOR_B", "")

	report, err := RunDoctorWithOptions(DoctorOptions{Fix: true})
	if err != nil {
		t.Fatalf("run doctor: %v", err)
	}
	c, ok := findCheck(report, "env_merge")
	if !ok || c.Status != DoctorPass {
		t.Fatalf("expected env_merge pass, got %#v", c)
	}

	target := filepath.Join(home, ".config", "creatorhook", "env")
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read merged env: %v", err)
	}
	if !strings.Contains(string(data), "CH_DOCTOR_A=1") || !strings.Contains(string(data), "CH_DOCTOR_B=2") {
		t.Fatalf("unexpected merged env: %s", data)
	}
	info, err := os.Stat(target)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("perm = %o", info.Mode().Perm())
	}
}

func TestIsLoopbackHost(t *testing.T) {
	for host, want := range map[string]bool{
		"localhost":   true,
		"127.0.0.1":   true,
		"::1":         true,
		"example.com": false,
		"":            false,
	} {
		if got := isLoopbackHost(host); got != want {
			t.Errorf("isLoopbackHost(%q) = %v, want %v", host, got, want)
		}
	}
}

func TestRunDoctorRelayProbeFailure(t *testing.T) {
	home := isolateHome(t)
	writeHomeConfig(t, home, `{
  "webhook": {"url": "https://hooks.example.com/chat", "userId": "u"},
  "relay": {"enabled": true, "brokers": "127.0.0.1:1", "topic": "creatorhook.replies"}
}`)

	report, err := RunDoctor()
	if err != nil {
		t.Fatalf("run doctor: %v", err)
	}
	c, ok := findCheck(report, "relay")
	if !ok || c.Status != DoctorFail {
		t.Fatalf("expected relay failure, got %#v", c)
	}
}

func TestRunDoctorResolvesKeyringWebhook(t *testing.T) {
	keyring.MockInit()
	home := isolateHome(t)
	writeHomeConfig(t, home, `{"webhook": {"url": "keyring:webhook", "userId": "u"}}`)

	report, _ := RunDoctor()
	c, _ := findCheck(report, "webhook_url")
	if c.Status != DoctorFail {
		t.Fatalf("expected missing keyring entry to fail, got %#v", c)
	}

	if err := secrets.Store("webhook", "https://hooks.example.com/chat"); err != nil {
		t.Fatalf("store secret: %v", err)
	}
	report, _ = RunDoctor()
	c, _ = findCheck(report, "webhook_url")
	if c.Status != DoctorPass {
		t.Fatalf("expected keyring webhook to pass, got %#v", c)
	}
}
