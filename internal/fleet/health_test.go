package fleet_test

import (
	"testing"

	"hyperion/internal/fleet"
)

func TestEvaluateHealth(t *testing.T) {
	cases := []struct {
		name    string
		active  int
		working int
		expect  fleet.Health
	}{
		{"full fleet idle", 10, 0, fleet.HealthOptimal},
		{"comfortable load", 6, 4, fleet.HealthOptimal},
		{"exactly at active floor", 3, 0, fleet.HealthOptimal},
		{"below active floor", 2, 0, fleet.HealthDegraded},
		{"no workers online", 0, 0, fleet.HealthDegraded},
		{"saturated fleet", 10, 8, fleet.HealthStressed},
		{"fully working", 10, 10, fleet.HealthStressed},
		{"just below stress line", 10, 7, fleet.HealthOptimal},
	}
	for _, tc := range cases {
		if got := fleet.EvaluateHealth(tc.active, tc.working); got != tc.expect {
			t.Errorf("%s: EvaluateHealth(%d, %d) = %s, want %s",
				tc.name, tc.active, tc.working, got, tc.expect)
		}
	}
}
