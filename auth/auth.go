// Package auth implements the SASL and challenge-response mechanisms
// used to authenticate a connection.
package auth

import (
	"context"
	"fmt"

	"github.com/mongowire/mongowire/conn"
	"github.com/mongowire/mongowire/model"
)

const defaultAuthDB = "admin"

func init() {
	RegisterAuthenticatorFactory("", newDefaultAuthenticator)
	RegisterAuthenticatorFactory(SCRAMSHA1, newScramSHA1Authenticator)
	RegisterAuthenticatorFactory(SCRAMSHA256, newScramSHA256Authenticator)
	RegisterAuthenticatorFactory(MONGODBCR, newMongoDBCRAuthenticator)
	RegisterAuthenticatorFactory(PLAIN, newPlainAuthenticator)
}

// Cred is a credential.
type Cred struct {
	Source      string
	Username    string
	Password    string
	PasswordSet bool
	Props       map[string]string
}

// Authenticator handles authenticating a connection.
type Authenticator interface {
	// Auth authenticates the connection.
	Auth(context.Context, conn.Connection) error
}

// AuthenticatorFactory constructs an authenticator from a credential.
type AuthenticatorFactory func(cred *Cred) (Authenticator, error)

var authFactories = make(map[string]AuthenticatorFactory)

// RegisterAuthenticatorFactory registers the authenticator factory for
// the given mechanism name.
func RegisterAuthenticatorFactory(name string, factory AuthenticatorFactory) {
	authFactories[name] = factory
}

// CreateAuthenticator creates an authenticator for the given mechanism
// name. The empty name selects a default mechanism based on what the
// server supports.
func CreateAuthenticator(name string, cred *Cred) (Authenticator, error) {
	if f, ok := authFactories[name]; ok {
		return f(cred)
	}

	return nil, newError(fmt.Errorf("unknown mechanism"), name)
}

// Dialer returns a connection dialer that authenticates the connection
// before handing it out. A connection that fails to authenticate is
// closed.
func Dialer(dialer conn.Dialer, authenticator Authenticator) conn.Dialer {
	return func(ctx context.Context, addr model.Addr, opts ...conn.Option) (conn.Connection, error) {
		return Dial(ctx, dialer, authenticator, addr, opts...)
	}
}

// Dial opens a connection and authenticates it.
func Dial(ctx context.Context, dialer conn.Dialer, authenticator Authenticator, addr model.Addr, opts ...conn.Option) (conn.Connection, error) {
	c, err := dialer(ctx, addr, opts...)
	if err != nil {
		if c != nil {
			c.Close()
		}
		return nil, err
	}

	err = authenticator.Auth(ctx, c)
	if err != nil {
		c.Close()
		return nil, err
	}

	return c, nil
}

func newError(err error, mech string) error {
	return &Error{
		message: fmt.Sprintf("unable to authenticate using mechanism \"%s\"", mech),
		inner:   err,
	}
}

// Error is an error that occurred during authentication.
type Error struct {
	message string
	inner   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.message, e.inner)
}

// Inner returns the wrapped error.
func (e *Error) Inner() error {
	return e.inner
}

// Message returns the message.
func (e *Error) Message() string {
	return e.message
}
