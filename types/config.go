package types

import "strings"

type OutputStyle int

const (
	StyleHuman OutputStyle = iota
	StyleHumanVerbose
	StyleMachineJSON
)

// Credential sources for a server password.
const (
	CredentialsKeyring = "keyring"
	CredentialsEnv     = "env"
)

// ServersConfig is the content of ibmisteps.yml.
type ServersConfig struct {
	Servers []*Server `yaml:"servers"`
}

// Server describes one IBM i host. An empty Host targets the local system.
type Server struct {
	Name        string `yaml:"name"`
	Host        string `yaml:"host,omitempty"`
	Port        int    `yaml:"port,omitempty"`
	User        string `yaml:"user"`
	CCSID       int    `yaml:"ccsid,omitempty"`
	Secure      bool   `yaml:"secure,omitempty"`
	KnownHosts  string `yaml:"known_hosts,omitempty"`
	SQLDriver   string `yaml:"sql_driver,omitempty"`
	Credentials string `yaml:"credentials,omitempty"`
}

// Find returns the server called name, ignoring case.
func (c *ServersConfig) Find(name string) (*Server, bool) {
	for _, s := range c.Servers {
		if strings.EqualFold(s.Name, name) {
			return s, true
		}
	}
	return nil, false
}
