package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultNumBytes is how many poem bytes a server writes per tick.
	DefaultNumBytes = 10
	// DefaultDelay is the pause between two writes.
	DefaultDelay = 100 * time.Millisecond
)

// Listener describes one slow poetry listener.
type Listener struct {
	Iface    string
	Port     int
	PoemPath string
	Text     string
	NumBytes int
	Delay    time.Duration
	// Hang keeps the connection open after the poem is sent.
	Hang      bool
	ReusePort bool
}

// Addr returns the listen address.
func (l Listener) Addr() string {
	return Address{Host: l.Iface, Port: l.Port}.String()
}

// ServerConfig holds the poetry server configuration.
type ServerConfig struct {
	Listeners   []Listener
	AdminAddr   string
	MetricsAddr string
}

type yamlServerFile struct {
	AdminAddr   string         `yaml:"admin_addr"`
	MetricsAddr string         `yaml:"metrics_addr"`
	Listeners   []yamlListener `yaml:"listeners"`
}

type yamlListener struct {
	Iface    string `yaml:"iface"`
	Port     int    `yaml:"port"`
	Poem     string `yaml:"poem"`
	Text     string `yaml:"text"`
	NumBytes int    `yaml:"num_bytes"`
	Delay    string `yaml:"delay"`
	Hang     bool   `yaml:"hang"`
	Reuse    bool   `yaml:"reuse_port"`
}

// LoadServerFile reads a YAML server configuration.
func LoadServerFile(path string) (ServerConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return ServerConfig{}, fmt.Errorf("failed to read server config %s: %w", path, err)
	}

	var dto yamlServerFile
	if err := yaml.Unmarshal(b, &dto); err != nil {
		return ServerConfig{}, fmt.Errorf("failed to parse server config %s: %w", path, err)
	}

	return mapServerFile(dto)
}

func mapServerFile(dto yamlServerFile) (ServerConfig, error) {
	if len(dto.Listeners) == 0 {
		return ServerConfig{}, errors.New("server config has no listeners")
	}

	cfg := ServerConfig{
		AdminAddr:   dto.AdminAddr,
		MetricsAddr: dto.MetricsAddr,
		Listeners:   make([]Listener, 0, len(dto.Listeners)),
	}

	for i, l := range dto.Listeners {
		if l.Port < 0 || l.Port > 65535 {
			return ServerConfig{}, fmt.Errorf("listener %d: port %d out of range", i, l.Port)
		}
		if l.Poem != "" && l.Text != "" {
			return ServerConfig{}, fmt.Errorf("listener %d: poem and text are mutually exclusive", i)
		}

		lis := Listener{
			Iface:     l.Iface,
			Port:      l.Port,
			PoemPath:  l.Poem,
			Text:      l.Text,
			NumBytes:  l.NumBytes,
			Delay:     DefaultDelay,
			Hang:      l.Hang,
			ReusePort: l.Reuse,
		}
		if lis.Iface == "" {
			lis.Iface = "localhost"
		}
		if lis.NumBytes <= 0 {
			lis.NumBytes = DefaultNumBytes
		}
		if l.Delay != "" {
			d, err := time.ParseDuration(l.Delay)
			if err != nil {
				return ServerConfig{}, fmt.Errorf("listener %d: invalid delay: %w", i, err)
			}
			lis.Delay = d
		}

		cfg.Listeners = append(cfg.Listeners, lis)
	}

	return cfg, nil
}
