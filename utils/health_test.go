package utils

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHealthMonitor_Check(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("down") }

	m := NewHealthMonitor(ok, []Pinger{ok, down}, 0)
	assert.True(t, m.Status().CheckedAt.IsZero())

	status := m.Check(context.Background())
	assert.True(t, status.Store)
	assert.Equal(t, []bool{true, false}, status.Redis)
	assert.Equal(t, status, m.Status())

	m = NewHealthMonitor(down, nil, 0)
	assert.False(t, m.Check(context.Background()).Store)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, "debug", parseLevel("debug").String())
	assert.Equal(t, "info", parseLevel("").String())
	assert.Equal(t, "info", parseLevel("loud").String())
}
