// SPDX-License-Identifier: GPL-3.0-or-later

package isavail

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultServerAddr is the address of the Registro.br availability server.
	DefaultServerAddr = "200.160.2.3"

	// DefaultServerPort is the UDP port of the availability service.
	DefaultServerPort = 43

	// DefaultVersion is the protocol version we speak.
	DefaultVersion = 1

	// DefaultMaxRetries is the default number of (re)sends of a query.
	DefaultMaxRetries = 3

	// DefaultRetryTimeout is the amount by which the wait grows on each
	// iteration of the exchange.
	DefaultRetryTimeout = 5 * time.Second

	// MaxDatagramSize is the largest reply datagram we read.
	MaxDatagramSize = 512
)

// ErrInvalidConfig indicates that a [Config] cannot be used.
var ErrInvalidConfig = errors.New("invalid config")

// Language selects the language of the server messages.
type Language int

const (
	// LanguageEN requests English messages.
	LanguageEN Language = 0

	// LanguagePT requests Portuguese messages.
	LanguagePT Language = 1
)

// ParseLanguage maps "EN" and "PT" (case insensitive) to a [Language].
func ParseLanguage(s string) (Language, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "EN":
		return LanguageEN, nil
	case "PT":
		return LanguagePT, nil
	default:
		return 0, fmt.Errorf("%w: unknown language %q", ErrInvalidConfig, s)
	}
}

// String returns the two-letter code of the language.
func (l Language) String() string {
	switch l {
	case LanguageEN:
		return "EN"
	case LanguagePT:
		return "PT"
	default:
		return "Language(" + strconv.Itoa(int(l)) + ")"
	}
}

// Config contains the client parameters.
//
// Construct using [DefaultConfig] and override the fields you need. A
// [*Client] copies the config at construction and never modifies it.
type Config struct {
	// Server is the MANDATORY server IP address or host name.
	Server string

	// Port is the MANDATORY server UDP port.
	Port int

	// Version is the protocol version.
	Version int

	// Language selects the language of server messages.
	Language Language

	// ProxiedIP is the OPTIONAL address of the client we're querying on behalf of.
	//
	// When set, it must be an IPv4 or IPv6 literal.
	ProxiedIP string

	// Suggest asks the server for alternative names (version > 0 only).
	Suggest bool

	// MaxRetries is the maximum number of times a query is sent.
	MaxRetries int

	// RetryTimeout is added to the cumulative wait on each iteration.
	RetryTimeout time.Duration
}

// DefaultConfig returns the config used by the reference client.
func DefaultConfig() Config {
	return Config{
		Server:       DefaultServerAddr,
		Port:         DefaultServerPort,
		Version:      DefaultVersion,
		Language:     LanguagePT,
		MaxRetries:   DefaultMaxRetries,
		RetryTimeout: DefaultRetryTimeout,
	}
}

// Validate returns an error wrapping [ErrInvalidConfig] if the config is unusable.
func (c Config) Validate() error {
	if c.Server == "" {
		return fmt.Errorf("%w: empty server address", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Port)
	}
	if c.Version < 0 {
		return fmt.Errorf("%w: negative protocol version", ErrInvalidConfig)
	}
	if c.Language != LanguageEN && c.Language != LanguagePT {
		return fmt.Errorf("%w: unknown language %d", ErrInvalidConfig, int(c.Language))
	}
	if c.ProxiedIP != "" && net.ParseIP(c.ProxiedIP) == nil {
		return fmt.Errorf("%w: proxied IP %q is not an IP address", ErrInvalidConfig, c.ProxiedIP)
	}
	if c.MaxRetries <= 0 {
		return fmt.Errorf("%w: max retries must be positive", ErrInvalidConfig)
	}
	if c.RetryTimeout <= 0 {
		return fmt.Errorf("%w: retry timeout must be positive", ErrInvalidConfig)
	}
	return nil
}

// address returns the host:port endpoint of the server.
func (c Config) address() string {
	return net.JoinHostPort(c.Server, strconv.Itoa(c.Port))
}
