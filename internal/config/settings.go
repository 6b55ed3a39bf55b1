// Package config loads the two on-disk formats the server is configured
// from: a TOML settings document and a colon-delimited virtual-user
// directory file. Both are external collaborators (spec §1): the core
// server only ever sees the resulting ServerSettings and auth.User values.
package config

import (
	"fmt"
	"os"

	"github.com/naoina/toml"
)

// PortRange is an inclusive passive-port range, or nil for "any free port".
type PortRange struct {
	Start int `toml:"start"`
	End   int `toml:"end"`
}

// ServerSettings mirrors every knob in spec §6.
type ServerSettings struct {
	ListenAddr               string     `toml:"listen_addr"`
	PublicHost               string     `toml:"public_host"`
	PassivePortRange         *PortRange `toml:"passive_port_range"`
	MaxConnections           int        `toml:"max_connections"`
	MaxConnectionsPerIP      int        `toml:"max_connections_per_ip"`
	MaxLoginAttempts         int        `toml:"max_login_attempts"`
	Banner                   string     `toml:"banner"`
	PermitForeignAddresses   bool       `toml:"permit_foreign_addresses"`
	PermitPrivilegedPorts    bool       `toml:"permit_privileged_ports"`
	IdleTimeoutSeconds       int        `toml:"idle_timeout_seconds"`
	ConnectionTimeoutSeconds int        `toml:"connection_timeout_seconds"`
}

// Defaults returns the settings the server falls back to when a knob is
// left at its zero value (spec §6 defaults).
func Defaults() ServerSettings {
	return ServerSettings{
		ListenAddr:               "0.0.0.0:2121",
		MaxLoginAttempts:         3,
		Banner:                   "vftpd ready.",
		IdleTimeoutSeconds:       900,
		ConnectionTimeoutSeconds: 30,
	}
}

// LoadSettings reads and unmarshals a TOML settings file, filling any
// zero-valued field from Defaults().
func LoadSettings(path string) (ServerSettings, error) {
	settings := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return ServerSettings{}, fmt.Errorf("could not read %q: %w", path, err)
	}

	if err := toml.Unmarshal(data, &settings); err != nil {
		return ServerSettings{}, fmt.Errorf("could not parse %q: %w", path, err)
	}

	applyDefaults(&settings)

	return settings, nil
}

func applyDefaults(s *ServerSettings) {
	d := Defaults()
	if s.ListenAddr == "" {
		s.ListenAddr = d.ListenAddr
	}

	if s.MaxLoginAttempts == 0 {
		s.MaxLoginAttempts = d.MaxLoginAttempts
	}

	if s.Banner == "" {
		s.Banner = d.Banner
	}

	if s.IdleTimeoutSeconds == 0 {
		s.IdleTimeoutSeconds = d.IdleTimeoutSeconds
	}

	if s.ConnectionTimeoutSeconds == 0 {
		s.ConnectionTimeoutSeconds = d.ConnectionTimeoutSeconds
	}
}

// WriteDefaultFile writes a commented, ready-to-edit settings file, the
// same role the teacher's confFileContent() plays for its settings.toml.
func WriteDefaultFile(path string) error {
	const content = `# vftpd configuration file
#
# listen_addr is the address the control channel listens on.
listen_addr = "0.0.0.0:2121"

# public_host overrides the IP advertised in PASV replies (masquerade
# address). Leave empty to use the local socket address.
public_host = ""

# max_connections = 0 means unlimited.
max_connections = 0
max_connections_per_ip = 0
max_login_attempts = 3

banner = "vftpd ready."

permit_foreign_addresses = false
permit_privileged_ports = false

idle_timeout_seconds = 900
connection_timeout_seconds = 30

# Uncomment to restrict passive-mode data ports to a fixed range.
# [passive_port_range]
# start = 2122
# end = 2200
`

	return os.WriteFile(path, []byte(content), 0o644)
}
