package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/99designs/keyring"
	"github.com/graceinfra/ibmisteps/internal/session"
	"github.com/graceinfra/ibmisteps/types"
)

const (
	KeyringService = "ibmisteps"
	PasswordEnvVar = "IBMISTEPS_PASSWORD"
)

var envUnsafe = regexp.MustCompile(`[^A-Z0-9]+`)

// OpenKeyring opens the OS keyring holding server passwords.
func OpenKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName:   KeyringService,
		PassPrefix:    KeyringService,
		WinCredPrefix: KeyringService,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open keyring: %w", err)
	}
	return ring, nil
}

// CredentialKey is the keyring key of a server password.
func CredentialKey(server *types.Server) string {
	return strings.ToLower(server.Name) + "/" + strings.ToUpper(server.User)
}

// PasswordEnv is the environment variable read for servers using env credentials,
// e.g. IBMISTEPS_PASSWORD_DEV_BOX for server "dev-box".
func PasswordEnv(server *types.Server) string {
	return PasswordEnvVar + "_" + strings.Trim(envUnsafe.ReplaceAllString(strings.ToUpper(server.Name), "_"), "_")
}

func StorePassword(ring keyring.Keyring, server *types.Server, password string) error {
	err := ring.Set(keyring.Item{
		Key:   CredentialKey(server),
		Data:  []byte(password),
		Label: fmt.Sprintf("ibmisteps %s (%s)", server.Name, strings.ToUpper(server.User)),
	})
	if err != nil {
		return fmt.Errorf("failed to store password for server %q: %w", server.Name, err)
	}
	return nil
}

// Resolve turns a server definition into session options, fetching the password
// from the keyring or the environment. ring may be nil for env credentials.
func Resolve(server *types.Server, ring keyring.Keyring, getenv func(string) string) (session.Options, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	opts := session.Options{
		Host:       server.Host,
		Port:       server.Port,
		User:       server.User,
		CCSID:      server.CCSID,
		Secure:     server.Secure,
		KnownHosts: expandHome(server.KnownHosts),
		SQLDriver:  server.SQLDriver,
	}

	if server.Host == "" {
		return opts, nil
	}

	switch server.Credentials {
	case types.CredentialsEnv:
		name := PasswordEnv(server)
		opts.Password = getenv(name)
		if opts.Password == "" {
			return session.Options{}, fmt.Errorf("server %q: environment variable %s is not set", server.Name, name)
		}
	default:
		if ring == nil {
			return session.Options{}, fmt.Errorf("server %q: no keyring available", server.Name)
		}
		item, err := ring.Get(CredentialKey(server))
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return session.Options{}, fmt.Errorf("server %q: no password stored for %s; run 'ibmisteps init' first", server.Name, strings.ToUpper(server.User))
		}
		if err != nil {
			return session.Options{}, fmt.Errorf("server %q: failed to read password: %w", server.Name, err)
		}
		opts.Password = string(item.Data)
	}
	return opts, nil
}

func expandHome(p string) string {
	if rest, ok := strings.CutPrefix(p, "~/"); ok {
		if home, err := os.UserHomeDir(); err == nil {
			return home + "/" + rest
		}
	}
	return p
}
