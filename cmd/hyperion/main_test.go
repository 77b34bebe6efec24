package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runCLI(t *testing.T, args []string) (string, error) {
	t.Helper()

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeTestConfig(t *testing.T) string {
	t.Helper()

	base := t.TempDir()
	configPath := filepath.Join(base, "config.toml")
	content := strings.Join([]string{
		"[paths]",
		`data_dir = "` + filepath.Join(base, "data") + `"`,
		`log_dir = "` + filepath.Join(base, "logs") + `"`,
		"",
	}, "\n")
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return configPath
}

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	out, err := runCLI(t, []string{"config", "init", "--path", target})
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, "Wrote sample configuration") {
		t.Fatalf("unexpected output: %q", out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}
}

func TestUploadLifecycleCommands(t *testing.T) {
	configPath := writeTestConfig(t)

	out, err := runCLI(t, []string{"--config", configPath, "upload", "register"})
	if err != nil {
		t.Fatalf("upload register: %v", err)
	}
	taskID := strings.TrimSpace(out)
	if taskID == "" {
		t.Fatal("expected task id on stdout")
	}

	out, err = runCLI(t, []string{"--config", configPath, "upload", "confirm", taskID})
	if err != nil {
		t.Fatalf("upload confirm: %v", err)
	}
	if !strings.Contains(out, "UPLOADED") {
		t.Fatalf("unexpected confirm output: %q", out)
	}

	out, err = runCLI(t, []string{"--config", configPath, "enqueue", taskID})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if !strings.Contains(out, "not added to queue") {
		t.Fatalf("expected enqueue no-op after confirm, got %q", out)
	}

	out, err = runCLI(t, []string{"--config", configPath, "show", taskID})
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if !strings.Contains(out, taskID) || !strings.Contains(out, "upload confirmed") {
		t.Fatalf("unexpected show output: %q", out)
	}

	out, err = runCLI(t, []string{"--config", configPath, "tasks", "--status", "uploaded"})
	if err != nil {
		t.Fatalf("tasks: %v", err)
	}
	if !strings.Contains(out, taskID) {
		t.Fatalf("expected task listed, got %q", out)
	}
}

func TestTasksRejectsUnknownStatus(t *testing.T) {
	configPath := writeTestConfig(t)

	if _, err := runCLI(t, []string{"--config", configPath, "tasks", "--status", "archived"}); err == nil {
		t.Fatal("expected error for unknown status filter")
	}
}
