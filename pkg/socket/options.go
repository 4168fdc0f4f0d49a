package socket

import (
	"fmt"
	"time"

	"github.com/mash-protocol/mash-zap/pkg/curve"
	"github.com/mash-protocol/mash-zap/pkg/log"
	"github.com/mash-protocol/mash-zap/pkg/wire"
)

// DefaultHandshakeTimeout bounds a greeting, including the ZAP round-trip.
const DefaultHandshakeTimeout = 30 * time.Second

const maxOptionLen = 255

type options struct {
	zapDomain     string
	enforceDomain bool

	plainServer   bool
	plainUsername []byte
	plainPassword []byte

	curveServer    bool
	curveSecret    *curve.Key
	curvePublic    *curve.Key
	curveServerKey *curve.Key

	routingID        string
	linger           time.Duration
	handshakeTimeout time.Duration
	logger           log.Logger
}

func defaultOptions() options {
	return options{
		linger:           -1,
		handshakeTimeout: DefaultHandshakeTimeout,
		logger:           log.NoopLogger{},
	}
}

// serverMechanism is the mechanism an accepting socket demands.
func (o *options) serverMechanism() string {
	switch {
	case o.curveServer:
		return wire.MechanismCurve
	case o.plainServer:
		return wire.MechanismPlain
	default:
		return wire.MechanismNull
	}
}

// clientMechanism is the mechanism a connecting socket offers.
func (o *options) clientMechanism() string {
	switch {
	case o.curveServerKey != nil:
		return wire.MechanismCurve
	case o.plainUsername != nil || o.plainPassword != nil:
		return wire.MechanismPlain
	default:
		return wire.MechanismNull
	}
}

// zapRequired reports whether an accepted greeting needs a ZAP verdict.
func (o *options) zapRequired(mechanism string) bool {
	return mechanism != wire.MechanismNull || o.zapDomain != ""
}

func (s *Socket) setOption(apply func(o *options) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return apply(&s.opts)
}

func (s *Socket) optionsSnapshot() options {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts
}

// SetZAPDomain sets the authentication domain sent in ZAP requests. A
// non-empty domain makes NULL greetings consult ZAP too.
func (s *Socket) SetZAPDomain(domain string) error {
	if len(domain) > maxOptionLen {
		return fmt.Errorf("%w: zap domain longer than %d", ErrInvalidOption, maxOptionLen)
	}
	return s.setOption(func(o *options) error {
		o.zapDomain = domain
		return nil
	})
}

// SetZAPEnforceDomain makes greetings fail when ZAP is required but no
// handler is bound.
func (s *Socket) SetZAPEnforceDomain(enforce bool) error {
	return s.setOption(func(o *options) error {
		o.enforceDomain = enforce
		return nil
	})
}

// SetPlainServer makes the socket accept PLAIN greetings.
func (s *Socket) SetPlainServer(server bool) error {
	return s.setOption(func(o *options) error {
		o.plainServer = server
		return nil
	})
}

// SetPlainUsername sets the PLAIN username offered when connecting.
func (s *Socket) SetPlainUsername(username string) error {
	if len(username) > maxOptionLen {
		return fmt.Errorf("%w: username longer than %d", ErrInvalidOption, maxOptionLen)
	}
	return s.setOption(func(o *options) error {
		o.plainUsername = []byte(username)
		return nil
	})
}

// SetPlainPassword sets the PLAIN password offered when connecting.
func (s *Socket) SetPlainPassword(password string) error {
	if len(password) > maxOptionLen {
		return fmt.Errorf("%w: password longer than %d", ErrInvalidOption, maxOptionLen)
	}
	return s.setOption(func(o *options) error {
		o.plainPassword = []byte(password)
		return nil
	})
}

// SetCurveServer makes the socket accept CURVE greetings. A secret key
// must be installed before the first connection arrives.
func (s *Socket) SetCurveServer(server bool) error {
	return s.setOption(func(o *options) error {
		o.curveServer = server
		return nil
	})
}

// SetCurveSecretKey installs the socket's own secret key (Z85 text).
func (s *Socket) SetCurveSecretKey(text string) error {
	key, err := curve.ParseKey(text)
	if err != nil {
		return err
	}
	return s.setOption(func(o *options) error {
		o.curveSecret = &key
		return nil
	})
}

// SetCurvePublicKey installs the socket's own public key (Z85 text).
func (s *Socket) SetCurvePublicKey(text string) error {
	key, err := curve.ParseKey(text)
	if err != nil {
		return err
	}
	return s.setOption(func(o *options) error {
		o.curvePublic = &key
		return nil
	})
}

// SetCurveServerKey installs the public key of the server to connect to
// (Z85 text) and selects CURVE for outgoing connections.
func (s *Socket) SetCurveServerKey(text string) error {
	key, err := curve.ParseKey(text)
	if err != nil {
		return err
	}
	return s.setOption(func(o *options) error {
		o.curveServerKey = &key
		return nil
	})
}

// SetRoutingID sets the identity announced in greetings and ZAP requests.
func (s *Socket) SetRoutingID(id string) error {
	if id == "" || len(id) > maxOptionLen {
		return fmt.Errorf("%w: routing id length %d", ErrInvalidOption, len(id))
	}
	return s.setOption(func(o *options) error {
		o.routingID = id
		return nil
	})
}

// SetLinger controls how TCP connections are torn down on Close. Negative
// keeps the OS default; zero resets the connection immediately.
func (s *Socket) SetLinger(d time.Duration) error {
	return s.setOption(func(o *options) error {
		o.linger = d
		return nil
	})
}

// SetHandshakeTimeout bounds each greeting. Zero restores the default.
func (s *Socket) SetHandshakeTimeout(d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("%w: negative handshake timeout", ErrInvalidOption)
	}
	if d == 0 {
		d = DefaultHandshakeTimeout
	}
	return s.setOption(func(o *options) error {
		o.handshakeTimeout = d
		return nil
	})
}

// SetLogger installs a protocol logger for frames and handshake outcomes.
func (s *Socket) SetLogger(logger log.Logger) error {
	return s.setOption(func(o *options) error {
		o.logger = log.OrNoop(logger)
		return nil
	})
}
