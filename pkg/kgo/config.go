package kgo

import (
	"crypto/tls"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/brokercore/kpro/pkg/kplog"
	"github.com/brokercore/kpro/pkg/sasl"
)

// Endpoint is a (host, port) pair identifying a broker on the network,
// per spec.md §3.
type Endpoint struct {
	Host string
	Port uint16
}

func (e Endpoint) String() string { return fmt.Sprintf("%s:%d", e.Host, e.Port) }

// SASLKind selects how a connection authenticates after any TLS
// upgrade, per spec.md §3's Config.sasl variants.
type SASLKind int8

const (
	SASLOff SASLKind = iota
	SASLPlain
	SASLCallback
)

// SASLConfig is the sasl option of spec.md §3.
type SASLConfig struct {
	Kind SASLKind

	// SASLPlain fields.
	User, Password     string
	CredentialsFile    string // alternative to User/Password; see credentials.go

	// SASLCallback fields.
	Module    string // module identifier, e.g. "scram256"
	Fallbacks []string // tried in order if Module is rejected as unsupported
	Opts      map[string]any
	Backend   sasl.AuthBackend // defaults to sasl.DefaultBackend{}
}

// TLSKind selects whether and how a connection upgrades to TLS, per
// spec.md §3's Config.tls variants.
type TLSKind int8

const (
	TLSOff TLSKind = iota
	TLSDefault
	TLSExplicit
)

// TLSConfig is the tls option of spec.md §3.
type TLSConfig struct {
	Kind   TLSKind
	Config *tls.Config // used verbatim when Kind == TLSExplicit
}

// DebugKind selects how a connection's debug tracing, if any, is
// emitted, per spec.md §3's Config.debug variants.
type DebugKind int8

const (
	DebugOff DebugKind = iota
	DebugStdout
	DebugFile
)

// DebugConfig is the debug option of spec.md §3.
type DebugConfig struct {
	Kind DebugKind
	Path string // used when Kind == DebugFile
}

const defaultClientID = "kpro_default"

// Config holds every recognized option of spec.md §3. Build one with
// NewConfig and functional Opts; do not construct it as a struct
// literal from outside the package, since defaulting and validation
// happen in NewConfig.
type Config struct {
	ConnectTimeout time.Duration `validate:"gt=0"`
	RequestTimeout time.Duration `validate:"min=1000000000"` // >= 1s, in nanoseconds
	ClientID       []byte
	NoLink         bool
	TLS            TLSConfig
	SASL           SASLConfig
	Debug          DebugConfig

	logger kplog.Logger
}

// Opt configures a Config.
type Opt interface{ apply(*Config) }

type optFunc func(*Config)

func (f optFunc) apply(c *Config) { f(c) }

func ConnectTimeout(d time.Duration) Opt { return optFunc(func(c *Config) { c.ConnectTimeout = d }) }
func RequestTimeout(d time.Duration) Opt { return optFunc(func(c *Config) { c.RequestTimeout = d }) }
func ClientID(id string) Opt             { return optFunc(func(c *Config) { c.ClientID = []byte(id) }) }
func NoLink() Opt                        { return optFunc(func(c *Config) { c.NoLink = true }) }

func WithTLS() Opt {
	return optFunc(func(c *Config) { c.TLS = TLSConfig{Kind: TLSDefault} })
}

func WithTLSConfig(tc *tls.Config) Opt {
	return optFunc(func(c *Config) { c.TLS = TLSConfig{Kind: TLSExplicit, Config: tc} })
}

func WithSASLPlain(user, password string) Opt {
	return optFunc(func(c *Config) {
		c.SASL = SASLConfig{Kind: SASLPlain, User: user, Password: password}
	})
}

func WithSASLPlainFile(path string) Opt {
	return optFunc(func(c *Config) {
		c.SASL = SASLConfig{Kind: SASLPlain, CredentialsFile: path}
	})
}

func WithSASLCallback(module string, opts map[string]any, backend sasl.AuthBackend) Opt {
	return optFunc(func(c *Config) {
		if backend == nil {
			backend = sasl.DefaultBackend{}
		}
		c.SASL = SASLConfig{Kind: SASLCallback, Module: module, Opts: opts, Backend: backend}
	})
}

// WithSASLFallbacks sets the mechanism modules to retry, in order, if
// the broker rejects the primary module configured via
// WithSASLCallback as an unsupported SASL mechanism.
func WithSASLFallbacks(modules ...string) Opt {
	return optFunc(func(c *Config) { c.SASL.Fallbacks = modules })
}

func DebugToStdout() Opt {
	return optFunc(func(c *Config) { c.Debug = DebugConfig{Kind: DebugStdout} })
}

func DebugToFile(path string) Opt {
	return optFunc(func(c *Config) { c.Debug = DebugConfig{Kind: DebugFile, Path: path} })
}

func defaultConfig() Config {
	return Config{
		ConnectTimeout: 5 * time.Second,
		RequestTimeout: 4 * time.Minute,
		ClientID:       []byte(defaultClientID),
	}
}

var cfgValidator = validator.New()

// NewConfig builds a Config from the given Opts, applying spec.md §3's
// defaults first and validating the result (e.g. request_timeout must
// be at least 1s).
func NewConfig(opts ...Opt) (Config, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o.apply(&cfg)
	}
	if err := cfgValidator.Struct(&cfg); err != nil {
		return Config{}, fmt.Errorf("kgo: invalid config: %w", err)
	}
	if len(cfg.ClientID) == 0 {
		cfg.ClientID = []byte(defaultClientID)
	}
	cfg.logger = buildLogger(cfg.Debug)
	return cfg, nil
}

func buildLogger(d DebugConfig) kplog.Logger {
	switch d.Kind {
	case DebugStdout:
		return kplog.NewStdout(kplog.LogLevelDebug)
	case DebugFile:
		f, err := os.OpenFile(d.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return kplog.NewStdout(kplog.LogLevelWarn)
		}
		return kplog.New(f, kplog.LogLevelDebug)
	default:
		return kplog.Nop()
	}
}

// resolveSASLCredentials returns the user/password a SASLPlain config
// should authenticate with: read from CredentialsFile when it is set,
// and User/Password otherwise.
func resolveSASLCredentials(c SASLConfig) (user, password string, err error) {
	if c.CredentialsFile != "" {
		f, err := os.Open(c.CredentialsFile)
		if err != nil {
			return "", "", err
		}
		defer f.Close()
		return parseCredentials(f)
	}
	return c.User, c.Password, nil
}

func parseCredentials(r io.Reader) (user, password string, err error) {
	return parseCredentialsFile(r)
}
