package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// HierarchyConfig holds tunables for organization hierarchy traversal
// and join-parent request validation.
type HierarchyConfig struct {
	// MaxDepth caps ancestor walks and descendant BFS. Exhausting the
	// cap is treated as a storage consistency fault, not a business
	// rule.
	MaxDepth int `mapstructure:"maxDepth"`

	// MaxMessageLength bounds the join-parent request message.
	MaxMessageLength int `mapstructure:"maxMessageLength"`

	// MaxNameLength / MaxDescriptionLength bound organization fields.
	MaxNameLength        int `mapstructure:"maxNameLength"`
	MaxDescriptionLength int `mapstructure:"maxDescriptionLength"`
}

func DefaultHierarchyConfig() HierarchyConfig {
	return HierarchyConfig{
		MaxDepth:             100,
		MaxMessageLength:     2000,
		MaxNameLength:        255,
		MaxDescriptionLength: 2000,
	}
}

// HierarchyConfigHolder exposes the current hierarchy config with hot
// reload from an optional config file.
type HierarchyConfigHolder struct {
	current atomic.Value // holds HierarchyConfig
}

func NewHierarchyConfigHolder() (*HierarchyConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("hierarchy")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/assemblee/config")
	v.AddConfigPath("/etc/assemblee")
	v.AddConfigPath(".")

	v.SetEnvPrefix("ASSEMBLEE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultHierarchyConfig()
	v.SetDefault("hierarchy.maxDepth", defaults.MaxDepth)
	v.SetDefault("hierarchy.maxMessageLength", defaults.MaxMessageLength)
	v.SetDefault("hierarchy.maxNameLength", defaults.MaxNameLength)
	v.SetDefault("hierarchy.maxDescriptionLength", defaults.MaxDescriptionLength)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg HierarchyConfig
	if err := v.UnmarshalKey("hierarchy", &cfg); err != nil {
		return nil, err
	}
	if err := validateHierarchyConfig(cfg); err != nil {
		return nil, err
	}

	holder := &HierarchyConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated HierarchyConfig
		if err := v.UnmarshalKey("hierarchy", &updated); err != nil {
			log.Printf("[hierarchy-config] reload failed: %v", err)
			return
		}
		if err := validateHierarchyConfig(updated); err != nil {
			log.Printf("[hierarchy-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[hierarchy-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticHierarchyConfigHolder returns a holder pinned to cfg. Used
// by tests and by callers that do not want file watching.
func NewStaticHierarchyConfigHolder(cfg HierarchyConfig) *HierarchyConfigHolder {
	holder := &HierarchyConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *HierarchyConfigHolder) Get() HierarchyConfig {
	return h.current.Load().(HierarchyConfig)
}

func validateHierarchyConfig(cfg HierarchyConfig) error {
	if cfg.MaxDepth <= 0 {
		return errors.New("hierarchy.maxDepth must be positive")
	}
	if cfg.MaxMessageLength <= 0 {
		return errors.New("hierarchy.maxMessageLength must be positive")
	}
	if cfg.MaxNameLength <= 0 {
		return errors.New("hierarchy.maxNameLength must be positive")
	}
	if cfg.MaxDescriptionLength <= 0 {
		return errors.New("hierarchy.maxDescriptionLength must be positive")
	}
	return nil
}
