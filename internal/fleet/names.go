package fleet

// Size is the fixed number of worker units in the fleet.
const Size = 10

// UnitNames are the display names of the fixed worker slots, in slot order.
// Slot ids are 1-based: slot 1 is Helios, slot 10 is Cronus.
var UnitNames = []string{
	"Helios",
	"Eos",
	"Aethon",
	"Crius",
	"Iapetus",
	"Perses",
	"Phlegon",
	"Phoebe",
	"Theia",
	"Cronus",
}

// UnitName returns the display name for a slot id, or empty for an unknown
// slot.
func UnitName(id int64) string {
	if id < 1 || id > int64(len(UnitNames)) {
		return ""
	}
	return UnitNames[id-1]
}
