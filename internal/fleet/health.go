package fleet

// Health grades the cluster's current capacity.
type Health string

const (
	HealthOptimal  Health = "Optimal"
	HealthStressed Health = "Stressed"
	HealthDegraded Health = "Degraded"
)

const (
	// stressedWorkingCount is the number of simultaneously working units at
	// which the cluster counts as stressed.
	stressedWorkingCount = 8
	// degradedActiveFloor is the minimum number of online units below which
	// the cluster counts as degraded.
	degradedActiveFloor = 3
)

// EvaluateHealth grades the cluster from online and working unit counts. The
// stressed check runs first: a nearly saturated fleet reports Stressed even
// when few units are online.
func EvaluateHealth(active, working int) Health {
	if working >= stressedWorkingCount {
		return HealthStressed
	}
	if active < degradedActiveFloor {
		return HealthDegraded
	}
	return HealthOptimal
}

// UnitState labels one worker slot for status output.
type UnitState string

const (
	UnitOffline UnitState = "Offline"
	UnitActive  UnitState = "Active"
	UnitWorking UnitState = "Working"
)
