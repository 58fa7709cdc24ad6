package shipper_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/fulfillment/pkg/shipper"
	"github.com/tournevent/fulfillment/pkg/shipper/mock"
)

func TestRegistry_Register(t *testing.T) {
	registry := shipper.NewRegistry()

	registry.Register(mock.New("GHTK"))

	got, err := registry.Get("GHTK")
	require.NoError(t, err, "shipper should be registered")
	assert.Equal(t, "GHTK", got.Name())
}

func TestRegistry_Get_NormalizesCode(t *testing.T) {
	registry := shipper.NewRegistry()
	registry.Register(mock.New("ghn"))

	got, err := registry.Get(" GHN ")
	require.NoError(t, err)
	assert.Equal(t, "ghn", got.Name())
	assert.True(t, registry.Has("Ghn"))
}

func TestRegistry_Register_Override(t *testing.T) {
	registry := shipper.NewRegistry()

	registry.Register(mock.New("GHTK"))
	assert.Equal(t, 1, registry.Count())

	// Register again with same code should override
	registry.Register(mock.New("ghtk"))
	assert.Equal(t, 1, registry.Count())
}

func TestRegistry_Get_NotFound(t *testing.T) {
	registry := shipper.NewRegistry()

	_, err := registry.Get("VTP")
	assert.Error(t, err, "should return error for unregistered shipper")
	assert.True(t, errors.Is(err, shipper.ErrCarrierNotFound))
	assert.False(t, registry.Has("VTP"))
}

func TestRegistry_Names(t *testing.T) {
	registry := shipper.NewRegistry()

	registry.Register(mock.New("GHTK"))
	registry.Register(mock.New("GHN"))
	registry.Register(mock.New("FREIGHTCOM"))

	assert.Equal(t, []string{"FREIGHTCOM", "GHN", "GHTK"}, registry.Names())
}

func TestRegistry_Count(t *testing.T) {
	registry := shipper.NewRegistry()
	assert.Equal(t, 0, registry.Count())

	registry.Register(mock.New("GHTK"))
	assert.Equal(t, 1, registry.Count())

	registry.Register(mock.New("GHN"))
	assert.Equal(t, 2, registry.Count())
}
