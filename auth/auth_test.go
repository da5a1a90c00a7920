package auth_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	. "github.com/mongowire/mongowire/auth"
)

func TestCreateAuthenticator(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		auther Authenticator
	}{
		{name: "", auther: &DefaultAuthenticator{}},
		{name: "SCRAM-SHA-1", auther: &ScramSHA1Authenticator{}},
		{name: "SCRAM-SHA-256", auther: &ScramSHA256Authenticator{}},
		{name: "MONGODB-CR", auther: &MongoDBCRAuthenticator{}},
		{name: "PLAIN", auther: &PlainAuthenticator{}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cred := &Cred{Source: "blah", Username: "user", Password: "pencil"}
			a, err := CreateAuthenticator(test.name, cred)
			require.NoError(t, err)
			require.IsType(t, test.auther, a)
		})
	}
}

func TestCreateAuthenticator_unknown_mechanism(t *testing.T) {
	t.Parallel()

	_, err := CreateAuthenticator("NOT-A-MECHANISM", &Cred{})
	require.Error(t, err)
}
