package contracts

// DeviceInfo contains information about a MIDI output destination.
type DeviceInfo struct {
	Name         string // Destination name.
	Manufacturer string // Destination manufacturer.
	EntityName   string // Name of the entity to which the destination belongs.
}
