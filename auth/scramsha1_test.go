package auth_test

import (
	"context"
	"encoding/base64"
	"reflect"
	"strings"
	"testing"

	"gopkg.in/mgo.v2/bson"

	. "github.com/mongowire/mongowire/auth"
	"github.com/mongowire/mongowire/internal/conntest"
	"github.com/mongowire/mongowire/internal/msgtest"
	"github.com/mongowire/mongowire/msg"
)

func TestScramSHA1Authenticator_Fails(t *testing.T) {
	t.Parallel()

	authenticator := ScramSHA1Authenticator{
		DB:       "source",
		Username: "user",
		Password: "pencil",
	}

	saslStartReply := msgtest.CreateCommandReply(bson.D{
		{Name: "ok", Value: 1},
		{Name: "conversationId", Value: 1},
		{Name: "payload", Value: []byte{}},
		{Name: "code", Value: 143},
		{Name: "done", Value: true},
	})

	conn := &conntest.MockConnection{
		ResponseQ: []*msg.Reply{saslStartReply},
	}

	err := authenticator.Auth(context.Background(), conn)
	if err == nil {
		t.Fatalf("expected an error but got none")
	}

	errPrefix := "unable to authenticate using mechanism \"SCRAM-SHA-1\""
	if !strings.HasPrefix(err.Error(), errPrefix) {
		t.Fatalf("expected an err starting with \"%s\" but got \"%s\"", errPrefix, err)
	}
}

func TestScramSHA1Authenticator_Invalid_server_nonce(t *testing.T) {
	t.Parallel()

	authenticator := ScramSHA1Authenticator{
		DB:       "source",
		Username: "user",
		Password: "pencil",
		NonceGenerator: func(dst []byte) error {
			copy(dst, []byte("fyko+d2lbbFgONRv9qkxdawL"))
			return nil
		},
	}

	payload, _ := base64.StdEncoding.DecodeString("cj1meWtvLWQybGJiRmdPTlJ2OXFreGRhd0xIbytWZ2s3cXZVT0tVd3VXTElXZzRsLzlTcmFHTUhFRSxzPXJROVpZM01udEJldVAzRTFURFZDNHc9PSxpPTEwMDAw")
	saslStartReply := msgtest.CreateCommandReply(bson.D{
		{Name: "ok", Value: 1},
		{Name: "conversationId", Value: 1},
		{Name: "payload", Value: payload},
		{Name: "done", Value: false},
	})

	conn := &conntest.MockConnection{
		ResponseQ: []*msg.Reply{saslStartReply},
	}

	err := authenticator.Auth(context.Background(), conn)
	if err == nil {
		t.Fatalf("expected an error but got none")
	}

	errPrefix := "unable to authenticate using mechanism \"SCRAM-SHA-1\": invalid nonce"
	if !strings.HasPrefix(err.Error(), errPrefix) {
		t.Fatalf("expected an err starting with \"%s\" but got \"%s\"", errPrefix, err)
	}
}

func TestScramSHA1Authenticator_Invalid_server_signature(t *testing.T) {
	t.Parallel()

	authenticator := ScramSHA1Authenticator{
		DB:       "source",
		Username: "user",
		Password: "pencil",
		NonceGenerator: func(dst []byte) error {
			copy(dst, []byte("fyko+d2lbbFgONRv9qkxdawL"))
			return nil
		},
	}

	payload, _ := base64.StdEncoding.DecodeString("cj1meWtvK2QybGJiRmdPTlJ2OXFreGRhd0xIbytWZ2s3cXZVT0tVd3VXTElXZzRsLzlTcmFHTUhFRSxzPXJROVpZM01udEJldVAzRTFURFZDNHc9PSxpPTEwMDAw")
	saslStartReply := msgtest.CreateCommandReply(bson.D{
		{Name: "ok", Value: 1},
		{Name: "conversationId", Value: 1},
		{Name: "payload", Value: payload},
		{Name: "done", Value: false},
	})
	payload, _ = base64.StdEncoding.DecodeString("dj1VTVdlSTI1SkQxeU5ZWlJNcFo0Vkh2aFo5ZTBh")
	saslContinueReply := msgtest.CreateCommandReply(bson.D{
		{Name: "ok", Value: 1},
		{Name: "conversationId", Value: 1},
		{Name: "payload", Value: payload},
		{Name: "done", Value: false},
	})

	conn := &conntest.MockConnection{
		ResponseQ: []*msg.Reply{saslStartReply, saslContinueReply},
	}

	err := authenticator.Auth(context.Background(), conn)
	if err == nil {
		t.Fatalf("expected an error but got none")
	}

	errPrefix := "unable to authenticate using mechanism \"SCRAM-SHA-1\": invalid server signature"
	if !strings.HasPrefix(err.Error(), errPrefix) {
		t.Fatalf("expected an err starting with \"%s\" but got \"%s\"", errPrefix, err)
	}
}

func TestScramSHA1Authenticator_Succeeds(t *testing.T) {
	t.Parallel()

	authenticator := ScramSHA1Authenticator{
		DB:       "source",
		Username: "user",
		Password: "pencil",
		NonceGenerator: func(dst []byte) error {
			copy(dst, []byte("fyko+d2lbbFgONRv9qkxdawL"))
			return nil
		},
	}

	payload, _ := base64.StdEncoding.DecodeString("cj1meWtvK2QybGJiRmdPTlJ2OXFreGRhd0xIbytWZ2s3cXZVT0tVd3VXTElXZzRsLzlTcmFHTUhFRSxzPXJROVpZM01udEJldVAzRTFURFZDNHc9PSxpPTEwMDAw")
	saslStartReply := msgtest.CreateCommandReply(bson.D{
		{Name: "ok", Value: 1},
		{Name: "conversationId", Value: 1},
		{Name: "payload", Value: payload},
		{Name: "done", Value: false},
	})
	payload, _ = base64.StdEncoding.DecodeString("dj1VTVdlSTI1SkQxeU5ZWlJNcFo0Vkh2aFo5ZTA9")
	saslContinueReply := msgtest.CreateCommandReply(bson.D{
		{Name: "ok", Value: 1},
		{Name: "conversationId", Value: 1},
		{Name: "payload", Value: payload},
		{Name: "done", Value: true},
	})

	conn := &conntest.MockConnection{
		ResponseQ: []*msg.Reply{saslStartReply, saslContinueReply},
	}

	err := authenticator.Auth(context.Background(), conn)
	if err != nil {
		t.Fatalf("expected no error but got \"%s\"", err)
	}

	if len(conn.Sent) != 2 {
		t.Fatalf("expected 2 messages to be sent but had %d", len(conn.Sent))
	}

	saslStartRequest := conn.Sent[0].(*msg.Query)
	payload, _ = base64.RawStdEncoding.DecodeString("biwsbj11c2VyLHI9ZnlrbytkMmxiYkZnT05Sdjlxa3hkYXdM")
	expectedCmd := bson.D{
		{Name: "saslStart", Value: 1},
		{Name: "mechanism", Value: "SCRAM-SHA-1"},
		{Name: "payload", Value: payload},
	}
	if !reflect.DeepEqual(saslStartRequest.Query, expectedCmd) {
		t.Fatalf("saslStart command was incorrect:\n  expected: %v\n    actual: %v", expectedCmd, saslStartRequest.Query)
	}

	saslContinueRequest := conn.Sent[1].(*msg.Query)
	payload, _ = base64.RawStdEncoding.DecodeString("Yz1iaXdzLHI9ZnlrbytkMmxiYkZnT05Sdjlxa3hkYXdMSG8rVmdrN3F2VU9LVXd1V0xJV2c0bC85U3JhR01IRUUscD1NQzJUOEJ2Ym1XUmNrRHc4b1dsNUlWZ2h3Q1k9")
	expectedCmd = bson.D{
		{Name: "saslContinue", Value: 1},
		{Name: "conversationId", Value: 1},
		{Name: "payload", Value: payload},
	}
	if !reflect.DeepEqual(saslContinueRequest.Query, expectedCmd) {
		t.Fatalf("saslContinue command was incorrect:\n  expected: %v\n    actual: %v", expectedCmd, saslContinueRequest.Query)
	}
}
