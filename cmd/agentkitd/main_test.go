package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/opspawn/agentkit/pkg/db"
)

const mainTestPrefix = "cmd/agentkitd:main_test"

func TestUsage_ContainsCommands(t *testing.T) {
	required := []string{"serve", "migrate", "clear", "ensure-db", "check-seed", "DATABASE_URL"}
	for _, word := range required {
		if !strings.Contains(usage, word) {
			t.Errorf("%s - usage should contain %q", mainTestPrefix, word)
		}
	}
}

func TestRun_Help(t *testing.T) {
	var out bytes.Buffer
	if err := run([]string{"help"}, &out); err != nil {
		t.Fatalf("%s - help: %v", mainTestPrefix, err)
	}
	if out.String() != usage {
		t.Errorf("%s - help output should be usage", mainTestPrefix)
	}
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"bogus"}, "unknown command"},
		{[]string{"migrate"}, "require subcommand"},
		{[]string{"migrate", "sideways"}, "unknown subcommand"},
	}
	for _, tt := range tests {
		err := run(tt.args, &bytes.Buffer{})
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Errorf("%s - run(%v) = %v, want %q", mainTestPrefix, tt.args, err, tt.want)
		}
	}
}

func TestRun_MigrateRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	err := run([]string{"migrate", "up"}, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Errorf("%s - expected DATABASE_URL error, got %v", mainTestPrefix, err)
	}
}

func TestRun_CheckSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	seed := "agents:\n  - agentName: planner\n    version: 1.0.0\nexternalTools:\n  - name: weather\n    endpoint: http://127.0.0.1:9/w\n"
	if err := os.WriteFile(path, []byte(seed), 0644); err != nil {
		t.Fatalf("%s - write seed: %v", mainTestPrefix, err)
	}

	var out bytes.Buffer
	if err := run([]string{"check-seed", path}, &out); err != nil {
		t.Fatalf("%s - check-seed: %v", mainTestPrefix, err)
	}
	if !strings.Contains(out.String(), "1 agents, 1 external tools") {
		t.Errorf("%s - output = %q", mainTestPrefix, out.String())
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	_ = os.WriteFile(bad, []byte("externalTools:\n  - name: weather\n    endpoint: nope\n"), 0644)
	if err := run([]string{"check-seed", bad}, &bytes.Buffer{}); err == nil {
		t.Errorf("%s - expected error for invalid endpoint", mainTestPrefix)
	}
}

func TestPrintMigrationStatus(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var out bytes.Buffer
	printMigrationStatus(&out, []db.MigrationState{
		{Name: "0001_dispatch_deliveries.sql", AppliedAt: &at},
		{Name: "0002_next.sql"},
	})
	got := out.String()
	if !strings.Contains(got, "applied  0001_dispatch_deliveries.sql  (2026-03-01T12:00:00Z)") {
		t.Errorf("%s - missing applied line: %q", mainTestPrefix, got)
	}
	if !strings.Contains(got, "pending  0002_next.sql") {
		t.Errorf("%s - missing pending line: %q", mainTestPrefix, got)
	}

	out.Reset()
	printMigrationStatus(&out, nil)
	if !strings.Contains(out.String(), "No migrations found") {
		t.Errorf("%s - empty status output = %q", mainTestPrefix, out.String())
	}
}
