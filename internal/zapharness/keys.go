package zapharness

import (
	"fmt"

	"github.com/mash-protocol/mash-zap/pkg/curve"
)

// TestKeys holds the key pairs of one test run. Server and Client are the
// valid pairs; Other is a well-formed pair nobody trusts.
type TestKeys struct {
	Server *curve.KeyPair
	Client *curve.KeyPair
	Other  *curve.KeyPair
}

// GenerateTestKeys creates fresh random key pairs.
func GenerateTestKeys() (*TestKeys, error) {
	var pairs [3]*curve.KeyPair
	for i := range pairs {
		kp, err := curve.GenerateKeyPair()
		if err != nil {
			return nil, Setup(fmt.Errorf("generate key pair: %w", err))
		}
		pairs[i] = kp
	}
	return &TestKeys{Server: pairs[0], Client: pairs[1], Other: pairs[2]}, nil
}

// ServerSecret is the ConfigureCurveServer payload.
func (k *TestKeys) ServerSecret() string { return k.Server.SecretText() }

// ClientPublic is the key the handler accepts.
func (k *TestKeys) ClientPublic() string { return k.Client.PublicText() }

// ValidClient is the ConfigureCurveClient payload for the trusted client.
func (k *TestKeys) ValidClient() *CurveClientKeys {
	return &CurveClientKeys{
		ServerPublic: k.Server.PublicText(),
		ClientPublic: k.Client.PublicText(),
		ClientSecret: k.Client.SecretText(),
	}
}

// UntrustedClient presents the Other pair to the right server.
func (k *TestKeys) UntrustedClient() *CurveClientKeys {
	return &CurveClientKeys{
		ServerPublic: k.Server.PublicText(),
		ClientPublic: k.Other.PublicText(),
		ClientSecret: k.Other.SecretText(),
	}
}

// WrongServer presents the trusted client pair to a server key that does
// not match.
func (k *TestKeys) WrongServer() *CurveClientKeys {
	return &CurveClientKeys{
		ServerPublic: k.Other.PublicText(),
		ClientPublic: k.Client.PublicText(),
		ClientSecret: k.Client.SecretText(),
	}
}
