package models

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDeviceState(t *testing.T) {
	tests := []struct {
		in      string
		want    DeviceState
		wantErr bool
	}{
		{in: "AVAILABLE", want: StateAvailable},
		{in: "IN_USE", want: StateInUse},
		{in: "INACTIVE", want: StateInactive},
		{in: "available", wantErr: true},
		{in: "BROKEN", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDeviceState(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrUnknownDeviceState))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDeviceState_Valid(t *testing.T) {
	assert.True(t, StateAvailable.Valid())
	assert.True(t, StateInUse.Valid())
	assert.True(t, StateInactive.Valid())
	assert.False(t, DeviceState("").Valid())
	assert.False(t, DeviceState("RETIRED").Valid())
}

func TestDeviceStateNames(t *testing.T) {
	assert.Equal(t, []string{"AVAILABLE", "IN_USE", "INACTIVE"}, DeviceStateNames())
}

func TestDevice_UnmarshalJSON(t *testing.T) {
	t.Run("known state", func(t *testing.T) {
		var d Device
		require.NoError(t, json.Unmarshal([]byte(`{"name":"X","brand":"B","state":"IN_USE"}`), &d))
		assert.Equal(t, StateInUse, d.State)
	})

	t.Run("absent state decodes to zero value", func(t *testing.T) {
		var d Device
		require.NoError(t, json.Unmarshal([]byte(`{"name":"X","brand":"B"}`), &d))
		assert.Equal(t, DeviceState(""), d.State)
		assert.False(t, d.State.Valid())
	})

	t.Run("unknown state is rejected", func(t *testing.T) {
		var d Device
		err := json.Unmarshal([]byte(`{"name":"X","brand":"B","state":"BROKEN"}`), &d)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUnknownDeviceState))
	})

	t.Run("state round trips as text", func(t *testing.T) {
		raw, err := json.Marshal(Device{ID: "1", Name: "X", Brand: "B", State: StateInactive})
		require.NoError(t, err)
		assert.Contains(t, string(raw), `"state":"INACTIVE"`)
	})
}
