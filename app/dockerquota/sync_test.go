// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package dockerquota

import "testing"

// TestBestAuditMatchWithinWindow validates that the closest-in-time
// candidate within the ±120s window wins.
//
// Parameters:
//   - t: testing context.
//
// Returns:
//   - None.
func TestBestAuditMatchWithinWindow(t *testing.T) {
	candidates := []auditCandidate{
		{timestamp: 1000, uid: 1001},
		{timestamp: 1090, uid: 1002},
		{timestamp: 1200, uid: 1003},
	}

	got := bestAuditMatch(candidates, 1100)
	if got == nil || *got != 1002 {
		t.Fatalf("bestAuditMatch() = %v, want uid 1002 (closest within window)", got)
	}
}

// TestBestAuditMatchOutsideWindow validates that no match is returned when
// every candidate falls outside ±120s.
//
// Parameters:
//   - t: testing context.
//
// Returns:
//   - None.
func TestBestAuditMatchOutsideWindow(t *testing.T) {
	candidates := []auditCandidate{
		{timestamp: 1000, uid: 1001},
	}

	if got := bestAuditMatch(candidates, 2000); got != nil {
		t.Fatalf("bestAuditMatch() = %v, want nil (outside window)", *got)
	}
}

// TestBestAuditMatchExactBoundary validates inclusive boundary behavior at
// exactly ±120s.
//
// Parameters:
//   - t: testing context.
//
// Returns:
//   - None.
func TestBestAuditMatchExactBoundary(t *testing.T) {
	candidates := []auditCandidate{
		{timestamp: 880, uid: 7},
	}

	got := bestAuditMatch(candidates, 1000)
	if got == nil || *got != 7 {
		t.Fatalf("bestAuditMatch() = %v, want uid 7 at exact 120s boundary", got)
	}
}

// TestBestAuditMatchTieBreak validates that on an exact tie the earliest
// candidate in scan order wins, since the loop only replaces on a strictly
// smaller delta.
//
// Parameters:
//   - t: testing context.
//
// Returns:
//   - None.
func TestBestAuditMatchTieBreak(t *testing.T) {
	candidates := []auditCandidate{
		{timestamp: 990, uid: 1}, // delta 10
		{timestamp: 1010, uid: 2}, // delta 10, tie
	}

	got := bestAuditMatch(candidates, 1000)
	if got == nil || *got != 1 {
		t.Fatalf("bestAuditMatch() = %v, want uid 1 (first candidate on tie)", got)
	}
}

// TestBestAuditMatchEmpty validates behavior against an empty candidate set.
//
// Parameters:
//   - t: testing context.
//
// Returns:
//   - None.
func TestBestAuditMatchEmpty(t *testing.T) {
	if got := bestAuditMatch(nil, 1000); got != nil {
		t.Fatalf("bestAuditMatch(nil, ...) = %v, want nil", *got)
	}
}

// TestIsContainerCacheAction validates the container event actions that
// trigger a cache invalidation.
//
// Parameters:
//   - t: testing context.
//
// Returns:
//   - None.
func TestIsContainerCacheAction(t *testing.T) {
	tests := []struct {
		action string
		want   bool
	}{
		{"create", true},
		{"destroy", true},
		{"die", true},
		{"kill", true},
		{"start", true},
		{"stop", true},
		{"exec_create", false},
		{"commit", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := isContainerCacheAction(tt.action); got != tt.want {
			t.Errorf("isContainerCacheAction(%q) = %v, want %v", tt.action, got, tt.want)
		}
	}
}

// TestIsImageCacheAction validates the image event actions that trigger a
// cache invalidation.
//
// Parameters:
//   - t: testing context.
//
// Returns:
//   - None.
func TestIsImageCacheAction(t *testing.T) {
	tests := []struct {
		action string
		want   bool
	}{
		{"pull", true},
		{"push", true},
		{"tag", true},
		{"untag", true},
		{"delete", true},
		{"remove", true},
		{"import", false},
		{"load", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := isImageCacheAction(tt.action); got != tt.want {
			t.Errorf("isImageCacheAction(%q) = %v, want %v", tt.action, got, tt.want)
		}
	}
}

// TestResolveUserNameUnknownUID validates the synthetic-name fallback for a
// uid that cannot plausibly exist on the local user database.
//
// Parameters:
//   - t: testing context.
//
// Returns:
//   - None.
func TestResolveUserNameUnknownUID(t *testing.T) {
	const improbableUID = 2147483000
	got := resolveUserName(improbableUID)
	want := "user_2147483000"
	if got != want {
		t.Errorf("resolveUserName(%d) = %q, want %q", improbableUID, got, want)
	}
}

// TestResolveUIDUnknownName validates that an unresolvable account name
// yields a nil uid rather than a panic or a zero value.
//
// Parameters:
//   - t: testing context.
//
// Returns:
//   - None.
func TestResolveUIDUnknownName(t *testing.T) {
	if got := resolveUID("definitely-not-a-real-account-xyz"); got != nil {
		t.Errorf("resolveUID() = %v, want nil", *got)
	}
}
