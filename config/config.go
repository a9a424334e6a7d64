// Package config loads process configuration: built-in defaults, then an
// optional YAML file, then pflag command-line overrides — in that order.
// Nothing here persists protocol state; it only seeds the
// CommandMessages a CLI entry point sends to the sender/receiver workers
// at startup.
package config

import (
	"os"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// PortRoute maps a remote network device name to a local output port name,
// the on-disk shape of a control.OutputPortMapping.
type PortRoute struct {
	NetworkName    string `yaml:"network_name"`
	OutputPortName string `yaml:"output_port_name"`
}

// InputRoute maps a local MIDI input device to the network name it
// publishes under, the on-disk shape of a control.InputPortMapping.
type InputRoute struct {
	DeviceName  string `yaml:"device_name"`
	NetworkName string `yaml:"network_name"`
}

// Config is the process configuration for midi-lan-node. No field here is
// wire-protocol state — it only seeds the initial commands sent to the
// sender and receiver workers.
type Config struct {
	NetworkInterface  string       `yaml:"network_interface"`
	EnableLoopback    bool         `yaml:"enable_loopback"`
	IgnoreMidiClock   bool         `yaml:"ignore_midi_clock"`
	SaveCPU           bool         `yaml:"save_cpu"`
	Inputs            []InputRoute `yaml:"inputs"`
	Outputs           []PortRoute  `yaml:"outputs"`
	LogLevel          string       `yaml:"log_level"`
	MetricsListenAddr string       `yaml:"metrics_listen_addr"`
	Advertise         bool         `yaml:"advertise"`
	AdvertiseInstance string       `yaml:"advertise_instance"`
}

// Defaults returns the built-in baseline Config every load starts from.
func Defaults() Config {
	hostname, _ := os.Hostname()
	return Config{
		NetworkInterface:  "",
		EnableLoopback:    false,
		IgnoreMidiClock:   true,
		SaveCPU:           false,
		LogLevel:          "info",
		MetricsListenAddr: "",
		Advertise:         false,
		AdvertiseInstance: hostname,
	}
}

// LoadFile overlays a YAML file's fields onto cfg. A missing path is not an
// error — a config file is optional ambient tooling, not a requirement.
func LoadFile(cfg *Config, path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// Flags binds pflag overrides for every Config field except Inputs and
// Outputs (which only the YAML file sets) onto fs, which the
// caller parses with fs.Parse(os.Args[1:]) after LoadFile so CLI flags win
// over the file (and the file wins over Defaults()).
func Flags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.NetworkInterface, "interface", cfg.NetworkInterface, "Network interface IPv4 address to bind to (empty: all interfaces).")
	fs.BoolVar(&cfg.EnableLoopback, "loopback", cfg.EnableLoopback, "Enable multicast loopback (receive packets sent by this host).")
	fs.BoolVar(&cfg.IgnoreMidiClock, "ignore-clock", cfg.IgnoreMidiClock, "Drop MIDI clock messages before sending.")
	fs.BoolVar(&cfg.SaveCPU, "save-cpu", cfg.SaveCPU, "Sleep briefly each worker iteration to reduce CPU usage.")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Minimum log level (debug, info, warn, error).")
	fs.StringVar(&cfg.MetricsListenAddr, "metrics-listen", cfg.MetricsListenAddr, "Address to serve Prometheus metrics on (empty: disabled).")
	fs.BoolVar(&cfg.Advertise, "advertise", cfg.Advertise, "Advertise this node via mDNS/Bonjour.")
	fs.StringVar(&cfg.AdvertiseInstance, "advertise-instance", cfg.AdvertiseInstance, "mDNS instance name to advertise under.")
}
