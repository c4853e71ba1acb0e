package config

import (
	"time"

	"github.com/clinicdesk/clinic-api/internal/scheduling"
)

// Store drivers accepted by STORE_DRIVER.
const (
	StoreMySQL  = "mysql"
	StoreMemory = "memory"
)

// BookingConfig holds the appointment rules: which slots exist, how many
// appointments a day accepts and how long a reservation may take.
type BookingConfig struct {
	Slots              []string
	DailyCap           int
	ReserveTimeout     time.Duration
	DefaultHorizonDays int
	MaxHorizonDays     int
	StoreDriver        string
}

// LoadBookingConfig reads BOOKING_* variables, falling back to the clinic
// defaults.
func LoadBookingConfig() BookingConfig {
	cfg := BookingConfig{
		Slots:              envList("BOOKING_SLOTS", scheduling.DefaultSlotLabels),
		DailyCap:           envInt("BOOKING_DAILY_CAP", scheduling.DefaultDailyCap),
		ReserveTimeout:     envDur("BOOKING_RESERVE_TIMEOUT", 3*time.Second),
		DefaultHorizonDays: envInt("BOOKING_DEFAULT_HORIZON_DAYS", 30),
		MaxHorizonDays:     envInt("BOOKING_MAX_HORIZON_DAYS", 90),
		StoreDriver:        envStr("STORE_DRIVER", StoreMySQL),
	}
	if cfg.DailyCap < 1 {
		cfg.DailyCap = scheduling.DefaultDailyCap
	}
	if cfg.ReserveTimeout <= 0 {
		cfg.ReserveTimeout = 3 * time.Second
	}
	if cfg.DefaultHorizonDays < 1 {
		cfg.DefaultHorizonDays = 30
	}
	if cfg.MaxHorizonDays < cfg.DefaultHorizonDays {
		cfg.MaxHorizonDays = cfg.DefaultHorizonDays
	}
	if cfg.StoreDriver != StoreMemory {
		cfg.StoreDriver = StoreMySQL
	}
	return cfg
}

// Options converts the configuration into service options.
func (b BookingConfig) Options() scheduling.Options {
	return scheduling.Options{
		DailyCap:           b.DailyCap,
		ReserveTimeout:     b.ReserveTimeout,
		DefaultHorizonDays: b.DefaultHorizonDays,
		MaxHorizonDays:     b.MaxHorizonDays,
	}
}
