// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package telemetrystream

import "testing"

func TestParseDSCPKnownNames(t *testing.T) {
	cases := map[string]int{
		"":     0,
		"ef":   46,
		"AF31": 26,
		"CS6":  48,
	}
	for name, want := range cases {
		got, err := ParseDSCP(name)
		if err != nil {
			t.Fatalf("ParseDSCP(%q): %v", name, err)
		}
		if got != want {
			t.Fatalf("ParseDSCP(%q) = %d, want %d", name, got, want)
		}
	}
}

func TestParseDSCPUnknownName(t *testing.T) {
	if _, err := ParseDSCP("BOGUS"); err == nil {
		t.Fatal("expected error for unknown DSCP name")
	}
}
