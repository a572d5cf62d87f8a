// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package dockerquota

import (
	"strings"
	"testing"
	"time"
)

// TestResolveRelativeSince validates relative-span parsing for ausearch -ts.
//
// Parameters:
//   - t: testing context.
//
// Returns:
//   - None.
func TestResolveRelativeSince(t *testing.T) {
	tests := []struct {
		name    string
		since   string
		wantOK  bool
	}{
		{name: "minutes", since: "60m", wantOK: true},
		{name: "hours", since: "24h", wantOK: true},
		{name: "days", since: "10d", wantOK: true},
		{name: "empty", since: "", wantOK: false},
		{name: "keyword", since: "recent", wantOK: false},
		{name: "unknown unit", since: "5x", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := resolveRelativeSince(tt.since)
			if ok != tt.wantOK {
				t.Fatalf("resolveRelativeSince(%q) ok = %v, want %v", tt.since, ok, tt.wantOK)
			}
			if ok {
				if _, err := time.ParseInLocation("01/02/2006 15:04:05", got, time.Local); err != nil {
					t.Fatalf("resolveRelativeSince(%q) produced unparsable timestamp %q: %v", tt.since, got, err)
				}
			}
		})
	}
}

// TestParseAusearchOutputUnixTimestamp validates parsing of a single
// audit(1234567.890:111) style record with key/value pairs.
//
// Parameters:
//   - t: testing context.
//
// Returns:
//   - None.
func TestParseAusearchOutputUnixTimestamp(t *testing.T) {
	stdout := `type=SYSCALL msg=audit(1700000000.123:456): arch=c000003e syscall=2 success=yes exit=3 a0=1 a1=2 pid=4242 auid=1000 uid=0 euid=0 comm="docker" exe="/usr/bin/docker" key="docker-client"
----
`
	records := parseAusearchOutput(stdout, DefaultAuditKeys)
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}

	rec := records[0]
	if rec.TimestampUnix != 1700000000.123 {
		t.Errorf("TimestampUnix = %v, want 1700000000.123", rec.TimestampUnix)
	}
	if rec.InitiatorUID == nil || *rec.InitiatorUID != 1000 {
		t.Errorf("InitiatorUID = %v, want 1000 (from auid, not effective uid 0)", rec.InitiatorUID)
	}
	if rec.PID == nil || *rec.PID != 4242 {
		t.Errorf("PID = %v, want 4242", rec.PID)
	}
	if rec.Exe != "/usr/bin/docker" {
		t.Errorf("Exe = %q, want /usr/bin/docker", rec.Exe)
	}
	if rec.Comm != "docker" {
		t.Errorf("Comm = %q, want docker", rec.Comm)
	}
	if rec.Key != "docker-client" {
		t.Errorf("Key = %q, want docker-client", rec.Key)
	}
}

// TestParseAusearchOutputWallClockTimestamp validates parsing of the
// time->MM/DD/YYYY HH:MM:SS header line ausearch -i emits.
//
// Parameters:
//   - t: testing context.
//
// Returns:
//   - None.
func TestParseAusearchOutputWallClockTimestamp(t *testing.T) {
	stdout := `time->07/31/2026 10:00:00
type=SYSCALL auid=1001 key="docker-socket"
`
	records := parseAusearchOutput(stdout, DefaultAuditKeys)
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].TimestampRaw != "07/31/2026 10:00:00" {
		t.Errorf("TimestampRaw = %q, want 07/31/2026 10:00:00", records[0].TimestampRaw)
	}
}

// TestParseAusearchOutputEmpty validates that blank/whitespace-only output
// produces no records.
//
// Parameters:
//   - t: testing context.
//
// Returns:
//   - None.
func TestParseAusearchOutputEmpty(t *testing.T) {
	if records := parseAusearchOutput("", DefaultAuditKeys); records != nil {
		t.Fatalf("got %d records for empty input, want nil", len(records))
	}
	if records := parseAusearchOutput("   \n----\n  \n", DefaultAuditKeys); records != nil {
		t.Fatalf("got %d records for blank blocks, want nil", len(records))
	}
}

// TestParseAusearchOutputFallbackKey validates that a record with no key=
// field is stamped with the first searched key.
//
// Parameters:
//   - t: testing context.
//
// Returns:
//   - None.
func TestParseAusearchOutputFallbackKey(t *testing.T) {
	stdout := `type=SYSCALL msg=audit(1700000000.000:1): auid=1000`
	records := parseAusearchOutput(stdout, []string{"docker-socket", "docker-client"})
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].Key != "docker-socket" {
		t.Errorf("Key = %q, want fallback docker-socket", records[0].Key)
	}
}

// TestParseAusearchOutputMultipleBlocks validates multi-block splitting on
// the "----" delimiter.
//
// Parameters:
//   - t: testing context.
//
// Returns:
//   - None.
func TestParseAusearchOutputMultipleBlocks(t *testing.T) {
	stdout := strings.Join([]string{
		`type=SYSCALL msg=audit(1700000000.000:1): auid=1000 key="docker-client"`,
		`type=SYSCALL msg=audit(1700000001.000:2): auid=1001 key="docker-socket"`,
	}, "\n----\n")

	records := parseAusearchOutput(stdout, DefaultAuditKeys)
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
}
