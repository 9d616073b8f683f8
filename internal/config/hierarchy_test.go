package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultHierarchyConfig(t *testing.T) {
	cfg := DefaultHierarchyConfig()
	assert.Equal(t, 100, cfg.MaxDepth)
	assert.Equal(t, 2000, cfg.MaxMessageLength)
	assert.Equal(t, 255, cfg.MaxNameLength)
	assert.Equal(t, 2000, cfg.MaxDescriptionLength)
	require.NoError(t, validateHierarchyConfig(cfg))
}

func TestValidateHierarchyConfig(t *testing.T) {
	cfg := DefaultHierarchyConfig()
	cfg.MaxDepth = 0
	assert.Error(t, validateHierarchyConfig(cfg))

	cfg = DefaultHierarchyConfig()
	cfg.MaxMessageLength = -1
	assert.Error(t, validateHierarchyConfig(cfg))
}

func TestStaticHolderPinsConfig(t *testing.T) {
	cfg := DefaultHierarchyConfig()
	cfg.MaxDepth = 7
	holder := NewStaticHierarchyConfigHolder(cfg)
	assert.Equal(t, 7, holder.Get().MaxDepth)
}
