// File: deviceinventory/models/device.go
package models

import (
	"errors"
	"fmt"
	"time"
)

// DeviceState is the lifecycle state of a device. Only the three named
// values are representable; anything else is rejected while decoding.
type DeviceState string

const (
	StateAvailable DeviceState = "AVAILABLE"
	StateInUse     DeviceState = "IN_USE"
	StateInactive  DeviceState = "INACTIVE"
)

var deviceStates = []DeviceState{StateAvailable, StateInUse, StateInactive}

// ErrUnknownDeviceState is returned when text does not name a DeviceState.
var ErrUnknownDeviceState = errors.New("unknown device state")

// DeviceStateNames lists the accepted state spellings.
func DeviceStateNames() []string {
	names := make([]string, 0, len(deviceStates))
	for _, s := range deviceStates {
		names = append(names, string(s))
	}
	return names
}

// ParseDeviceState converts text into a DeviceState. Matching is exact.
func ParseDeviceState(s string) (DeviceState, error) {
	for _, state := range deviceStates {
		if string(state) == s {
			return state, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDeviceState, s)
}

// Valid reports whether s is one of the defined states. The zero value is not valid.
func (s DeviceState) Valid() bool {
	_, err := ParseDeviceState(string(s))
	return err == nil
}

func (s DeviceState) String() string {
	return string(s)
}

// UnmarshalText rejects unknown states. Empty text decodes to the zero value
// so an absent state can be reported by the service instead of the decoder.
func (s *DeviceState) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*s = ""
		return nil
	}
	state, err := ParseDeviceState(string(text))
	if err != nil {
		return err
	}
	*s = state
	return nil
}

// Device is an inventory record. ID and CreationTime are owned by the store.
type Device struct {
	ID           string      `bson:"id" json:"id"`
	Name         string      `bson:"name" json:"name"`
	Brand        string      `bson:"brand" json:"brand"`
	State        DeviceState `bson:"state" json:"state"`
	CreationTime time.Time   `bson:"creationTime" json:"creationTime"`
}
