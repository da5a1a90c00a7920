package auth

import (
	"context"

	"github.com/mongowire/mongowire/conn"
	"github.com/mongowire/mongowire/internal/feature"
)

func newDefaultAuthenticator(cred *Cred) (Authenticator, error) {
	return &DefaultAuthenticator{Cred: cred}, nil
}

// DefaultAuthenticator picks a mechanism based on what the server
// advertises: SCRAM-SHA-256 when the server lists it for the user,
// otherwise SCRAM-SHA-1 on servers that support it, and MONGODB-CR on
// anything older.
type DefaultAuthenticator struct {
	Cred *Cred
}

// Auth authenticates the connection.
func (a *DefaultAuthenticator) Auth(ctx context.Context, c conn.Connection) error {
	factory := newMongoDBCRAuthenticator

	desc := c.Desc()
	switch {
	case saslSupported(desc.SaslSupportedMechs, SCRAMSHA256):
		factory = newScramSHA256Authenticator
	case feature.ScramSHA1(desc.Version) == nil:
		factory = newScramSHA1Authenticator
	}

	actual, err := factory(a.Cred)
	if err != nil {
		return err
	}

	return actual.Auth(ctx, c)
}

func saslSupported(mechs []string, name string) bool {
	for _, mech := range mechs {
		if mech == name {
			return true
		}
	}
	return false
}
