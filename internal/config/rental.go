package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// RentalPolicy holds the tunable business rules of the rental allocator.
type RentalPolicy struct {
	FormPrefix          string `mapstructure:"formPrefix"`
	DefaultVATRate      int    `mapstructure:"defaultVatRate"`
	DueSoonDays         int    `mapstructure:"dueSoonDays"`
	RecomputeOnFinalize bool   `mapstructure:"recomputeOnFinalize"`
}

// RentalPolicySource exposes the currently active rental policy.
type RentalPolicySource interface {
	RentalPolicy() RentalPolicy
}

func DefaultRentalPolicy() RentalPolicy {
	return RentalPolicy{
		FormPrefix:          "PF",
		DefaultVATRate:      20,
		DueSoonDays:         7,
		RecomputeOnFinalize: false,
	}
}

// StaticRentalPolicy serves a fixed policy.
type StaticRentalPolicy RentalPolicy

func (p StaticRentalPolicy) RentalPolicy() RentalPolicy {
	return RentalPolicy(p)
}

type RentalPolicyHolder struct {
	current atomic.Value // holds RentalPolicy
}

// NewRentalPolicyHolder reads rental.yml from the configured search path and
// keeps it reloaded on change. Missing files fall back to defaults; RENTAL_*
// environment variables override individual keys.
func NewRentalPolicyHolder(cfg Config) (*RentalPolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("rental")
	v.SetConfigType("yml")
	if cfg.RentalPolicyPath != "" {
		v.AddConfigPath(cfg.RentalPolicyPath)
	}
	v.AddConfigPath("/etc/equiprent")
	v.AddConfigPath(".")

	v.SetEnvPrefix("RENTAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultRentalPolicy()
	v.SetDefault("rental.formPrefix", defaults.FormPrefix)
	v.SetDefault("rental.defaultVatRate", defaults.DefaultVATRate)
	v.SetDefault("rental.dueSoonDays", defaults.DueSoonDays)
	v.SetDefault("rental.recomputeOnFinalize", defaults.RecomputeOnFinalize)
	_ = v.BindEnv("rental.formPrefix", "RENTAL_FORM_PREFIX")
	_ = v.BindEnv("rental.defaultVatRate", "RENTAL_DEFAULT_VAT")
	_ = v.BindEnv("rental.dueSoonDays", "RENTAL_DUE_SOON_DAYS")
	_ = v.BindEnv("rental.recomputeOnFinalize", "RENTAL_RECOMPUTE_ON_FINALIZE")

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	var policy RentalPolicy
	if err := v.UnmarshalKey("rental", &policy); err != nil {
		return nil, err
	}
	if err := validateRentalPolicy(policy); err != nil {
		return nil, err
	}

	holder := &RentalPolicyHolder{}
	holder.current.Store(policy)

	if fileLoaded {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			var updated RentalPolicy
			if err := v.UnmarshalKey("rental", &updated); err != nil {
				log.Printf("[rental-policy] reload failed: %v", err)
				return
			}
			if err := validateRentalPolicy(updated); err != nil {
				log.Printf("[rental-policy] invalid policy ignored: %v", err)
				return
			}
			holder.current.Store(updated)
			log.Printf("[rental-policy] reloaded from %s", e.Name)
		})
	}

	return holder, nil
}

func (h *RentalPolicyHolder) RentalPolicy() RentalPolicy {
	return h.current.Load().(RentalPolicy)
}

func validateRentalPolicy(p RentalPolicy) error {
	if strings.TrimSpace(p.FormPrefix) == "" {
		return errors.New("rental.formPrefix cannot be empty")
	}
	if p.DefaultVATRate < 0 || p.DefaultVATRate > 100 {
		return errors.New("rental.defaultVatRate must be between 0 and 100")
	}
	if p.DueSoonDays < 0 {
		return errors.New("rental.dueSoonDays cannot be negative")
	}
	return nil
}
