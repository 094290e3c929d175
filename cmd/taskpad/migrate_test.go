package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/Strob0t/taskpad/internal/adapter/postgres"
)

func TestMigrateSteps(t *testing.T) {
	tests := []struct {
		args    []string
		want    int
		wantErr bool
	}{
		{args: []string{"up"}, want: 0},
		{args: []string{"status"}, want: 0},
		{args: []string{"down"}, want: 1},
		{args: []string{"down", "3"}, want: 3},
		{args: []string{"down", "0"}, wantErr: true},
		{args: []string{"down", "many"}, wantErr: true},
		{args: []string{"sideways"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.args, "_"), func(t *testing.T) {
			got, err := migrateSteps(tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Fatalf("steps = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPrintMigrationStatus(t *testing.T) {
	var buf bytes.Buffer
	printMigrationStatus(&buf, []postgres.MigrationStatus{
		{Version: 1, Name: "001_users.sql", Applied: true, AppliedAt: time.Date(2024, 5, 1, 8, 30, 0, 0, time.Local)},
		{Version: 2, Name: "002_tasks.sql"},
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and two rows, got %q", buf.String())
	}
	if !strings.Contains(lines[1], "001_users.sql") || !strings.Contains(lines[1], "2024-05-01 08:30:00") {
		t.Errorf("applied row = %q", lines[1])
	}
	if !strings.Contains(lines[2], "pending") {
		t.Errorf("pending row = %q", lines[2])
	}
}

func TestRunMigrateRejectsUnknownBeforeConnecting(t *testing.T) {
	if err := runMigrate([]string{"sideways"}); err == nil || !strings.Contains(err.Error(), "unknown migrate command") {
		t.Fatalf("err = %v", err)
	}
}
