package zapharness

import (
	"fmt"
	"time"

	"github.com/mash-protocol/mash-zap/pkg/socket"
)

// Fixed test material shared by endpoints and the handler.
const (
	TestZAPDomain     = "ZAPTEST"
	TestPlainUsername = "testuser"
	TestPlainPassword = "testpass"
)

// Endpoint is the option surface the configure functions touch.
type Endpoint interface {
	SetZAPDomain(domain string) error
	SetZAPEnforceDomain(enforce bool) error
	SetPlainServer(server bool) error
	SetPlainUsername(username string) error
	SetPlainPassword(password string) error
	SetCurveServer(server bool) error
	SetCurveSecretKey(text string) error
	SetCurvePublicKey(text string) error
	SetCurveServerKey(text string) error
	SetLinger(d time.Duration) error
}

var _ Endpoint = (*socket.Socket)(nil)

// ConfigureFunc applies mechanism settings to an endpoint before it binds
// or connects. Errors are setup failures.
type ConfigureFunc func(ep Endpoint, payload any) error

// DomainPolicy is the optional payload of ConfigureNullServer.
type DomainPolicy struct {
	Enforce bool
}

// PlainCredentials overrides the PLAIN client pair.
type PlainCredentials struct {
	Username string
	Password string
}

// CurveClientKeys is the payload of ConfigureCurveClient. All keys are
// 40-character Z85 text.
type CurveClientKeys struct {
	ServerPublic string
	ClientPublic string
	ClientSecret string
}

// ConfigureNullClient leaves the endpoint untouched.
func ConfigureNullClient(Endpoint, any) error { return nil }

// ConfigureNullServer sets the test domain and, when payload is a
// *DomainPolicy, whether the domain is enforced.
func ConfigureNullServer(ep Endpoint, payload any) error {
	if err := ep.SetZAPDomain(TestZAPDomain); err != nil {
		return Setup(fmt.Errorf("zap domain: %w", err))
	}
	switch p := payload.(type) {
	case nil:
		return nil
	case *DomainPolicy:
		if p == nil {
			return nil
		}
		if err := ep.SetZAPEnforceDomain(p.Enforce); err != nil {
			return Setup(fmt.Errorf("zap enforce domain: %w", err))
		}
		return nil
	default:
		return Setup(fmt.Errorf("%w: %T for NULL server", ErrBadPayload, payload))
	}
}

// ConfigurePlainClient sets the username and password, testuser/testpass
// unless payload is a *PlainCredentials.
func ConfigurePlainClient(ep Endpoint, payload any) error {
	creds := PlainCredentials{Username: TestPlainUsername, Password: TestPlainPassword}
	switch p := payload.(type) {
	case nil:
	case *PlainCredentials:
		if p != nil {
			creds = *p
		}
	default:
		return Setup(fmt.Errorf("%w: %T for PLAIN client", ErrBadPayload, payload))
	}

	if err := ep.SetPlainPassword(creds.Password); err != nil {
		return Setup(fmt.Errorf("plain password: %w", err))
	}
	if err := ep.SetPlainUsername(creds.Username); err != nil {
		return Setup(fmt.Errorf("plain username: %w", err))
	}
	return nil
}

// ConfigurePlainServer marks the endpoint as PLAIN server in the test domain.
func ConfigurePlainServer(ep Endpoint, _ any) error {
	if err := ep.SetPlainServer(true); err != nil {
		return Setup(fmt.Errorf("plain server: %w", err))
	}
	if err := ep.SetZAPDomain(TestZAPDomain); err != nil {
		return Setup(fmt.Errorf("zap domain: %w", err))
	}
	return nil
}

// ConfigureCurveServer marks the endpoint as CURVE server with the secret
// key given as Z85 payload, in the enforced test domain.
func ConfigureCurveServer(ep Endpoint, payload any) error {
	secret, ok := payload.(string)
	if !ok {
		return Setup(fmt.Errorf("%w: %T for CURVE server, want Z85 secret", ErrBadPayload, payload))
	}
	if err := ep.SetCurveServer(true); err != nil {
		return Setup(fmt.Errorf("curve server: %w", err))
	}
	if err := ep.SetCurveSecretKey(secret); err != nil {
		return Setup(fmt.Errorf("curve secret key: %w", err))
	}
	if err := ep.SetZAPDomain(TestZAPDomain); err != nil {
		return Setup(fmt.Errorf("zap domain: %w", err))
	}
	if err := ep.SetZAPEnforceDomain(true); err != nil {
		return Setup(fmt.Errorf("zap enforce domain: %w", err))
	}
	return nil
}

// ConfigureCurveClient installs the server key and the client key pair.
func ConfigureCurveClient(ep Endpoint, payload any) error {
	keys, ok := payload.(*CurveClientKeys)
	if !ok || keys == nil {
		return Setup(fmt.Errorf("%w: %T for CURVE client, want *CurveClientKeys", ErrBadPayload, payload))
	}
	if err := ep.SetCurveServerKey(keys.ServerPublic); err != nil {
		return Setup(fmt.Errorf("curve server key: %w", err))
	}
	if err := ep.SetCurvePublicKey(keys.ClientPublic); err != nil {
		return Setup(fmt.Errorf("curve public key: %w", err))
	}
	if err := ep.SetCurveSecretKey(keys.ClientSecret); err != nil {
		return Setup(fmt.Errorf("curve secret key: %w", err))
	}
	return nil
}
