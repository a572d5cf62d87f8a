// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package dockerquota

import "testing"

// TestNewEnforcerOrderFallback validates that an unrecognised enforcement
// order falls back to newest_first rather than being stored verbatim.
//
// Parameters:
//   - t: testing context.
//
// Returns:
//   - None.
func TestNewEnforcerOrderFallback(t *testing.T) {
	tests := []struct {
		name  string
		order EnforcementOrder
		want  EnforcementOrder
	}{
		{name: "newest first kept", order: EnforcementOrderNewestFirst, want: EnforcementOrderNewestFirst},
		{name: "oldest first kept", order: EnforcementOrderOldestFirst, want: EnforcementOrderOldestFirst},
		{name: "largest first kept", order: EnforcementOrderLargestFirst, want: EnforcementOrderLargestFirst},
		{name: "empty falls back", order: EnforcementOrder(""), want: EnforcementOrderNewestFirst},
		{name: "unknown falls back", order: EnforcementOrder("random"), want: EnforcementOrderNewestFirst},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEnforcer(nil, nil, nil, nil, tt.order)
			if e.order != tt.want {
				t.Errorf("NewEnforcer(%q).order = %q, want %q", tt.order, e.order, tt.want)
			}
		})
	}
}
