// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package dockerquota

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sk-pkg/logger"
)

// DefaultAuditKeys are the two audit keys consulted by the synchroniser's
// audit-match phases: docker-socket access and docker-client execution.
var DefaultAuditKeys = []string{"docker-socket", "docker-client"}

const auditSubprocessTimeout = 60 * time.Second

var (
	wallClockTimeRe = regexp.MustCompile(`time->(\d{2}/\d{2}/\d{4} \d{2}:\d{2}:\d{2})`)
	unixSecsTimeRe  = regexp.MustCompile(`msg=audit\((\d+)\.(\d+):(\d+)\)`)
	kvRe            = regexp.MustCompile(`(\w+)=("[^"]*"|\S+)`)
)

// AuditReader invokes the host audit-search tool to retrieve Docker-related
// records over a rolling time window, per spec §4.B.
type AuditReader struct {
	logger *logger.Manager
}

// NewAuditReader creates an AuditReader.
//
// Parameters:
//   - logger: logger manager used for diagnostic/debug logs.
//
// Returns:
//   - *AuditReader: initialized reader.
func NewAuditReader(logger *logger.Manager) *AuditReader {
	return &AuditReader{logger: logger}
}

// ReadAuditRecords invokes ausearch for the given keys and time window.
//
// Parameters:
//   - ctx: parent context; a 60s timeout bounds the subprocess.
//   - keys: audit keys to search for, e.g. DefaultAuditKeys.
//   - since: either a keyword native to ausearch (e.g. "recent") or a
//     relative span like "60m", which is translated to an absolute
//     wall-clock start before invocation.
//
// Returns:
//   - []AuditRecord: normalised records, empty (not an error) when the tool
//     is absent or reports no matches.
//   - error: wrapped BackendUnavailable only for unexpected subprocess
//     failures (neither "absent" nor "no matches").
func (a *AuditReader) ReadAuditRecords(ctx context.Context, keys []string, since string) ([]AuditRecord, error) {
	args := []string{"-i"}
	for _, k := range keys {
		args = append(args, "-k", k)
	}

	if ts, ok := resolveRelativeSince(since); ok {
		args = append(args, "-ts", ts)
	} else if since != "" {
		args = append(args, "-ts", since)
	}

	subCtx, cancel := context.WithTimeout(ctx, auditSubprocessTimeout)
	defer cancel()

	cmd := exec.CommandContext(subCtx, "ausearch", args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		var execErr *exec.ExitError
		if errors.As(err, &execErr) {
			// ausearch returns non-zero (often 1) on "no matches found".
			if strings.Contains(strings.ToLower(stdout.String()), "no matches") ||
				strings.Contains(strings.ToLower(stderr.String()), "no matches") {
				return nil, nil
			}
			a.logger.Warn(ctx, "ausearch reported a non-zero exit status")
			return nil, nil
		}

		if errors.Is(err, exec.ErrNotFound) || strings.Contains(err.Error(), "executable file not found") {
			// Tool absent -- empty, not an error, per spec §4.B.
			return nil, nil
		}

		return nil, newError(BackendUnavailable, err)
	}

	return parseAusearchOutput(stdout.String(), keys), nil
}

// resolveRelativeSince translates a relative span like "60m"/"24h"/"10d"
// into an absolute wall-clock start time ausearch accepts via -ts, since the
// tool does not accept relative spans natively.
//
// Parameters:
//   - since: candidate relative span.
//
// Returns:
//   - string: formatted "MM/DD/YYYY HH:MM:SS" absolute start time.
//   - bool: true when since was recognised as a relative span.
func resolveRelativeSince(since string) (string, bool) {
	if since == "" {
		return "", false
	}

	unit := since[len(since)-1]
	numPart := since[:len(since)-1]

	n, err := strconv.Atoi(numPart)
	if err != nil {
		return "", false
	}

	var d time.Duration
	switch unit {
	case 'm':
		d = time.Duration(n) * time.Minute
	case 'h':
		d = time.Duration(n) * time.Hour
	case 'd':
		d = time.Duration(n) * 24 * time.Hour
	default:
		return "", false
	}

	start := time.Now().Add(-d)
	return start.Format("01/02/2006 15:04:05"), true
}

// parseAusearchOutput splits ausearch's "----" delimited output into blocks
// and normalises each into an AuditRecord.
//
// Parameters:
//   - stdout: raw ausearch standard output.
//   - keys: the keys that were searched for, stamped onto unmatched records.
//
// Returns:
//   - []AuditRecord: zero or more normalised records.
func parseAusearchOutput(stdout string, keys []string) []AuditRecord {
	blocks := strings.Split(stdout, "----")

	var records []AuditRecord
	for _, block := range blocks {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}

		rec := AuditRecord{RawMsg: block}

		if m := unixSecsTimeRe.FindStringSubmatch(block); m != nil {
			secs, _ := strconv.ParseFloat(m[1]+"."+m[2], 64)
			rec.TimestampUnix = secs
			rec.TimestampRaw = m[1] + "." + m[2] + ":" + m[3]
		} else if m := wallClockTimeRe.FindStringSubmatch(block); m != nil {
			rec.TimestampRaw = m[1]
			if t, err := time.ParseInLocation("01/02/2006 15:04:05", m[1], time.Local); err == nil {
				rec.TimestampUnix = float64(t.Unix())
			}
		}

		for _, line := range strings.Split(block, "\n") {
			for _, kv := range kvRe.FindAllStringSubmatch(line, -1) {
				key, value := kv[1], strings.Trim(kv[2], `"`)
				switch key {
				case "uid", "auid":
					if uid, err := strconv.Atoi(value); err == nil && (key == "auid" || rec.InitiatorUID == nil) {
						// Prefer the initiator (auid) identity over the
						// effective uid, per spec §4.B: sudo-wrapped
						// clients retain the original identity in auid.
						u := uid
						rec.InitiatorUID = &u
					}
				case "euid":
					if uid, err := strconv.Atoi(value); err == nil {
						u := uid
						rec.EffectiveUID = &u
					}
				case "pid":
					if pid, err := strconv.Atoi(value); err == nil {
						p := pid
						rec.PID = &p
					}
				case "exe":
					rec.Exe = value
				case "comm":
					rec.Comm = value
				case "key":
					rec.Key = value
				}
			}
		}

		if rec.Key == "" && len(keys) > 0 {
			rec.Key = keys[0]
		}

		records = append(records, rec)
	}

	return records
}

// CheckHealth reports ausearch tool presence and basic Docker-rule wiring,
// for diagnostics per spec §4.B.
//
// Parameters:
//   - ctx: request context.
//
// Returns:
//   - AuditHealth: diagnostic payload.
func (a *AuditReader) CheckHealth(ctx context.Context) AuditHealth {
	health := AuditHealth{}

	if _, err := exec.LookPath("ausearch"); err != nil {
		health.Errors = append(health.Errors, "ausearch not found in PATH")
		return health
	}
	health.ToolPresent = true

	subCtx, cancel := context.WithTimeout(ctx, auditSubprocessTimeout)
	defer cancel()

	out, err := exec.CommandContext(subCtx, "auditctl", "-l").CombinedOutput()
	if err != nil {
		health.Errors = append(health.Errors, "auditctl -l failed: "+err.Error())
		return health
	}
	health.DaemonRunning = true

	for _, line := range strings.Split(string(out), "\n") {
		for _, k := range DefaultAuditKeys {
			if strings.Contains(line, "key="+k) {
				health.Rules = append(health.Rules, strings.TrimSpace(line))
				health.DockerRulesPresent = true
			}
		}
	}

	return health
}
