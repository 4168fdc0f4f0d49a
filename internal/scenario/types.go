// Package scenario describes handshake scenarios as YAML data and runs them
// through the ZAP harness.
package scenario

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mash-protocol/mash-zap/internal/zapharness"
	"github.com/mash-protocol/mash-zap/pkg/socket"
	"github.com/mash-protocol/mash-zap/pkg/wire"
)

// Scenario is one server configuration, one client credential choice and
// the outcome expected for each connection attempt.
type Scenario struct {
	// ID uniquely identifies the scenario (e.g. "FAULT-03").
	ID string `yaml:"id"`

	// Name is a short human-readable title.
	Name string `yaml:"name"`

	// Description explains what the scenario proves.
	Description string `yaml:"description,omitempty"`

	// Mechanism is NULL, PLAIN or CURVE.
	Mechanism string `yaml:"mechanism"`

	// Fault is the handler fault mode (default none).
	Fault zapharness.FaultMode `yaml:"fault,omitempty"`

	// Handler runs a ZAP handler unless set to false.
	Handler *bool `yaml:"handler,omitempty"`

	// EnforceDomain makes a NULL server require a handler.
	EnforceDomain bool `yaml:"enforce_domain,omitempty"`

	// Credentials selects what the client presents (default valid).
	Credentials Credentials `yaml:"credentials,omitempty"`

	// Attempts is the number of sequential clients (default 1).
	Attempts int `yaml:"attempts,omitempty"`

	// HandshakeTimeout overrides the server's greeting deadline.
	HandshakeTimeout time.Duration `yaml:"handshake_timeout,omitempty"`

	// Expect is checked after every attempt and after teardown.
	Expect Expectation `yaml:"expect"`
}

// Credentials names a client credential choice.
type Credentials string

const (
	CredentialsValid          Credentials = "valid"
	CredentialsWrongPassword  Credentials = "wrong-password"
	CredentialsWrongUser      Credentials = "wrong-user"
	CredentialsUntrustedKey   Credentials = "untrusted-key"
	CredentialsWrongServerKey Credentials = "wrong-server-key"
)

var credentialsFor = map[string][]Credentials{
	wire.MechanismNull:  {CredentialsValid},
	wire.MechanismPlain: {CredentialsValid, CredentialsWrongPassword, CredentialsWrongUser},
	wire.MechanismCurve: {CredentialsValid, CredentialsUntrustedKey, CredentialsWrongServerKey},
}

// Expectation is the observable outcome of an attempt.
type Expectation struct {
	// Connected means messages must cross; otherwise nothing may.
	Connected bool `yaml:"connected"`

	// Server is the event the server monitor must report.
	Server *EventSpec `yaml:"server,omitempty"`

	// Client is the event the client monitor must report.
	Client *EventSpec `yaml:"client,omitempty"`

	// Requests is the handler's request count after teardown.
	Requests *int64 `yaml:"requests,omitempty"`
}

// EventSpec names a monitor event and its value.
//
// Value is a number, an errno name (EPIPE, ECONNRESET, ECONNABORTED,
// ETIMEDOUT, EFAULT, EPROTO), a protocol code name (ZAP_BAD_VERSION) or
// "any". Empty means any.
type EventSpec struct {
	Event string `yaml:"event"`
	Value string `yaml:"value,omitempty"`
}

var errnoNames = map[string]int{
	"EPIPE":        socket.ErrnoPipe,
	"ECONNRESET":   socket.ErrnoConnReset,
	"ECONNABORTED": socket.ErrnoConnAborted,
	"ETIMEDOUT":    socket.ErrnoTimedOut,
	"EFAULT":       socket.ErrnoFault,
	"EPROTO":       socket.ErrnoProto,
}

// Resolve converts the event name and value into a harness expectation.
func (e *EventSpec) Resolve() (zapharness.ExpectedEvent, error) {
	kind, err := socket.ParseEventKind(e.Event)
	if err != nil {
		return zapharness.ExpectedEvent{}, err
	}
	value, err := resolveValue(e.Value)
	if err != nil {
		return zapharness.ExpectedEvent{}, fmt.Errorf("event %s: %w", e.Event, err)
	}
	return zapharness.ExpectedEvent{Kind: kind, Value: value}, nil
}

func resolveValue(text string) (int, error) {
	switch {
	case text == "" || strings.EqualFold(text, "any"):
		return zapharness.AnyValue, nil
	case strings.HasPrefix(text, "E"):
		if v, ok := errnoNames[text]; ok {
			return v, nil
		}
		return 0, fmt.Errorf("unknown errno %q", text)
	}
	if v, err := strconv.ParseInt(text, 0, 64); err == nil {
		return int(v), nil
	}
	code, err := wire.ParseProtocolCode(text)
	if err != nil {
		return 0, err
	}
	return int(code), nil
}

// HandlerEnabled reports whether a ZAP handler runs.
func (s *Scenario) HandlerEnabled() bool {
	return s.Handler == nil || *s.Handler
}

// AttemptCount returns Attempts with its default applied.
func (s *Scenario) AttemptCount() int {
	if s.Attempts == 0 {
		return 1
	}
	return s.Attempts
}

func (s *Scenario) credentials() Credentials {
	if s.Credentials == "" {
		return CredentialsValid
	}
	return s.Credentials
}

// Validate checks field combinations that cannot run.
func (s *Scenario) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("scenario ID is required")
	}
	allowed, ok := credentialsFor[s.Mechanism]
	if !ok {
		return fmt.Errorf("unknown mechanism %q", s.Mechanism)
	}
	creds := s.credentials()
	valid := false
	for _, c := range allowed {
		valid = valid || c == creds
	}
	if !valid {
		return fmt.Errorf("credentials %q not available for %s", creds, s.Mechanism)
	}
	if s.Attempts < 0 {
		return fmt.Errorf("attempts must not be negative")
	}
	if s.Fault == zapharness.FaultDisconnect && s.AttemptCount() != 1 {
		return fmt.Errorf("fault %s allows a single attempt", s.Fault)
	}
	if s.EnforceDomain && s.Mechanism != wire.MechanismNull {
		return fmt.Errorf("enforce_domain applies to NULL only")
	}
	for _, spec := range []*EventSpec{s.Expect.Server, s.Expect.Client} {
		if spec == nil {
			continue
		}
		if _, err := spec.Resolve(); err != nil {
			return err
		}
	}
	return nil
}

// Result is the outcome of one scenario run.
type Result struct {
	Scenario *Scenario
	Passed   bool
	Err      error
	Requests int64
	Duration time.Duration
}

// SuiteResult aggregates a set of runs.
type SuiteResult struct {
	Name      string
	Results   []*Result
	Duration  time.Duration
	PassCount int
	FailCount int
}
