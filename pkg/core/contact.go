// pkg/core/contact.go
package core

// ContactCategory tags what kind of touching a contact represents. Damage is
// gated strictly on this tag: surface contacts used for grounding checks are
// reported but must never be treated as damage sources.
type ContactCategory uint8

const (
	ContactVehicleVehicle ContactCategory = iota
	ContactVehicleBarrier
	ContactGround
)

// String returns the category name used in logs and telemetry.
func (c ContactCategory) String() string {
	switch c {
	case ContactVehicleVehicle:
		return "vehicle-vehicle"
	case ContactVehicleBarrier:
		return "vehicle-barrier"
	case ContactGround:
		return "ground"
	default:
		return "unknown"
	}
}

// CollisionContact is an ephemeral touching event produced by one physics
// step and consumed once. BodyB is zero for barrier and ground contacts.
type CollisionContact struct {
	BodyA        VehicleID
	BodyB        VehicleID
	ClosingSpeed float64 // relative closing speed in m/s, >= 0
	Category     ContactCategory
}
