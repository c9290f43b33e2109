package device

import "deviceinventory/models"

// Lifecycle policy. These rules are the only domain logic of the inventory;
// they are pure and never touch storage.

const (
	msgInvalidState   = "Invalid state"
	msgUpdateInUse    = "Cannot update name or brand of a device " + string(models.StateInUse)
	msgDeleteInUse    = "In-use devices cannot be deleted"
	msgDeviceNotFound = "Device not found"
)

// IsValidState reports whether state is one of the defined lifecycle states.
func IsValidState(state models.DeviceState) bool {
	return state.Valid()
}

// CanUpdate returns nil when proposed may replace existing. An IN_USE device
// keeps its name and brand; its state may still change.
func CanUpdate(existing, proposed models.Device) error {
	if existing.State == models.StateInUse &&
		(proposed.Name != existing.Name || proposed.Brand != existing.Brand) {
		return newError(KindNotAllowed, msgUpdateInUse)
	}
	return nil
}

// CanDelete returns nil when existing may be removed. IN_USE devices cannot be deleted.
func CanDelete(existing models.Device) error {
	if existing.State == models.StateInUse {
		return newError(KindNotAllowed, msgDeleteInUse)
	}
	return nil
}
