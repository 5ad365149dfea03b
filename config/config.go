// Package config handles TOML parsing of the runtime knobs the router
// core accepts from its embedding application: NAT timeouts and the NAT
// on/off switch. Interface and route definitions are parsed by the
// embedding application, not this package.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Knobs holds the external configuration knobs named in the router's
// external interfaces.
type Knobs struct {
	ICMPTimeout           Duration `toml:"icmp_timeout"`
	TCPEstablishedTimeout Duration `toml:"tcp_established_timeout"`
	TCPTransitoryTimeout  Duration `toml:"tcp_transitory_timeout"`
	NATEnabled            bool     `toml:"nat_enabled"`
	// ExternalInterface names the interface NAT treats as "outside"
	// (spec.md §4.4). It is decoded but not read by the router core or
	// cmd/softgwd; in particular it does not affect NATEnabled.
	ExternalInterface string `toml:"external_interface"`
	// MetricsNamespace is decoded but not applied: the metrics package
	// registers every metric under the fixed "softgw" namespace.
	MetricsNamespace string `toml:"metrics_namespace"`
}

// Duration wraps time.Duration so it can be parsed from a plain integer
// number of seconds in TOML, matching the knobs' "seconds" unit.
type Duration time.Duration

// UnmarshalTOML implements toml.Unmarshaler, interpreting an integer value
// as a count of seconds.
func (d *Duration) UnmarshalTOML(v any) error {
	switch val := v.(type) {
	case int64:
		*d = Duration(time.Duration(val) * time.Second)
	case float64:
		*d = Duration(time.Duration(val * float64(time.Second)))
	default:
		return fmt.Errorf("config: unsupported duration value %v (%T)", v, v)
	}
	return nil
}

func (d Duration) AsDuration() time.Duration { return time.Duration(d) }

// DefaultKnobs returns the knobs' documented defaults.
func DefaultKnobs() Knobs {
	return Knobs{
		ICMPTimeout:           Duration(60 * time.Second),
		TCPEstablishedTimeout: Duration(7440 * time.Second),
		TCPTransitoryTimeout:  Duration(300 * time.Second),
		NATEnabled:            true,
		MetricsNamespace:      "softgw",
	}
}

// Load reads and parses a TOML file at path, applying [DefaultKnobs] for
// any field left unset by the file.
func Load(path string) (Knobs, error) {
	knobs := DefaultKnobs()
	data, err := os.ReadFile(path)
	if err != nil {
		return Knobs{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &knobs); err != nil {
		return Knobs{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return knobs, nil
}
