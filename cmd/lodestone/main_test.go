package main

import (
	"path/filepath"
	"testing"
)

func TestRun_NoArgs(t *testing.T) {
	exitCode := run([]string{"lodestone"})
	if exitCode != 1 {
		t.Errorf("expected exit code 1 for no args, got %d", exitCode)
	}
}

func TestRun_Help(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"help command", []string{"lodestone", "help"}},
		{"short flag", []string{"lodestone", "-h"}},
		{"long flag", []string{"lodestone", "--help"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exitCode := run(tt.args)
			if exitCode != 0 {
				t.Errorf("expected exit code 0 for help, got %d", exitCode)
			}
		})
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	exitCode := run([]string{"lodestone", "unknown"})
	if exitCode != 1 {
		t.Errorf("expected exit code 1 for unknown command, got %d", exitCode)
	}
}

func TestRun_Version(t *testing.T) {
	exitCode := run([]string{"lodestone", "version"})
	if exitCode != 0 {
		t.Errorf("expected exit code 0 for version, got %d", exitCode)
	}
}

func TestRun_VersionShort(t *testing.T) {
	exitCode := run([]string{"lodestone", "version", "-short"})
	if exitCode != 0 {
		t.Errorf("expected exit code 0 for version -short, got %d", exitCode)
	}
}

func TestRun_CommandHelp(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"stats", []string{"lodestone", "stats", "-h"}},
		{"get", []string{"lodestone", "get", "-help"}},
		{"set", []string{"lodestone", "set", "-h"}},
		{"delete", []string{"lodestone", "delete", "-help"}},
		{"keys", []string{"lodestone", "keys", "-h"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exitCode := run(tt.args)
			if exitCode != 0 {
				t.Errorf("expected exit code 0 for command help, got %d", exitCode)
			}
		})
	}
}

func TestRun_MissingRequiredFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"stats without file", []string{"lodestone", "stats"}},
		{"get without key", []string{"lodestone", "get", "-file", "/tmp/x.db"}},
		{"set without key", []string{"lodestone", "set", "-file", "/tmp/x.db"}},
		{"delete without key", []string{"lodestone", "delete", "-file", "/tmp/x.db"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exitCode := run(tt.args)
			if exitCode != 1 {
				t.Errorf("expected exit code 1, got %d", exitCode)
			}
		})
	}
}

func TestRun_SetGetDeleteRoundTrip(t *testing.T) {
	file := filepath.Join(t.TempDir(), "cli.db")

	exitCode := run([]string{"lodestone", "set", "-file", file, "-key", "greeting", "-value", "hello"})
	if exitCode != 0 {
		t.Fatalf("expected exit code 0 for set, got %d", exitCode)
	}

	exitCode = run([]string{"lodestone", "get", "-file", file, "-key", "greeting"})
	if exitCode != 0 {
		t.Errorf("expected exit code 0 for get, got %d", exitCode)
	}

	exitCode = run([]string{"lodestone", "stats", "-file", file})
	if exitCode != 0 {
		t.Errorf("expected exit code 0 for stats, got %d", exitCode)
	}

	exitCode = run([]string{"lodestone", "keys", "-file", file})
	if exitCode != 0 {
		t.Errorf("expected exit code 0 for keys, got %d", exitCode)
	}

	exitCode = run([]string{"lodestone", "delete", "-file", file, "-key", "greeting"})
	if exitCode != 0 {
		t.Errorf("expected exit code 0 for delete, got %d", exitCode)
	}

	exitCode = run([]string{"lodestone", "get", "-file", file, "-key", "greeting"})
	if exitCode != 1 {
		t.Errorf("expected exit code 1 for deleted key, got %d", exitCode)
	}
}
