package conn_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"gopkg.in/mgo.v2/bson"

	. "github.com/mongowire/mongowire/conn"
	"github.com/mongowire/mongowire/internal/conntest"
	"github.com/mongowire/mongowire/internal/msgtest"
	"github.com/mongowire/mongowire/msg"
)

func TestExecuteCommand_Valid(t *testing.T) {
	t.Parallel()

	type okResp struct {
		OK int32 `bson:"ok"`
	}

	conn := &conntest.MockConnection{}
	conn.ResponseQ = append(conn.ResponseQ, msgtest.CreateCommandReply(bson.D{{Name: "ok", Value: 1}}))

	var result okResp
	err := ExecuteCommand(context.Background(), conn, &msg.Query{}, &result)
	if err != nil {
		t.Fatalf("expected nil err but got \"%s\"", err)
	}
	if len(conn.Sent) != 1 {
		t.Fatalf("expected 1 write, but had %d", len(conn.Sent))
	}
	if result.OK != 1 {
		t.Fatalf("expected response ok to be 1 but was %d", result.OK)
	}
}

func validateExecuteCommandError(t *testing.T, err error, errPrefix string, writeCount int) {
	if err == nil {
		t.Fatalf("expected an err but did not get one")
	}
	if !strings.HasPrefix(err.Error(), errPrefix) {
		t.Fatalf("expected an err starting with \"%s\" but got \"%s\"", errPrefix, err)
	}
	if writeCount != 1 {
		t.Fatalf("expected 1 write, but had %d", writeCount)
	}
}

func TestExecuteCommand_Error_writing_to_connection(t *testing.T) {
	t.Parallel()

	conn := &conntest.MockConnection{}
	conn.WriteErr = fmt.Errorf("error writing")

	var result bson.M
	err := ExecuteCommand(context.Background(), conn, &msg.Query{}, &result)

	validateExecuteCommandError(t, err, "failed sending commands", 1)
}

func TestExecuteCommand_Error_reading_from_connection(t *testing.T) {
	t.Parallel()

	conn := &conntest.MockConnection{}

	var result bson.M
	err := ExecuteCommand(context.Background(), conn, &msg.Query{}, &result)

	validateExecuteCommandError(t, err, "failed receiving command response", 1)
}

func TestExecuteCommand_marks_write_side_failures(t *testing.T) {
	t.Parallel()

	conn := &conntest.MockConnection{}
	conn.WriteErr = fmt.Errorf("error writing")

	var result bson.M
	err := ExecuteCommand(context.Background(), conn, &msg.Query{}, &result)
	if !IsWriteFailure(err) {
		t.Fatalf("expected a write-side failure but got %v", err)
	}

	// a failure awaiting the reply is not a write-side failure; the
	// request reached the server
	conn = &conntest.MockConnection{}
	err = ExecuteCommand(context.Background(), conn, &msg.Query{}, &result)
	if err == nil || IsWriteFailure(err) {
		t.Fatalf("expected a read-side failure but got %v", err)
	}
}

func TestExecuteCommand_Error_from_server(t *testing.T) {
	t.Parallel()

	conn := &conntest.MockConnection{}
	conn.ResponseQ = append(conn.ResponseQ, msgtest.CreateCommandReply(bson.D{
		{Name: "ok", Value: 0},
		{Name: "errmsg", Value: "weird command was invalid"},
		{Name: "code", Value: 59},
		{Name: "codeName", Value: "CommandNotFound"},
	}))

	var result bson.M
	err := ExecuteCommand(context.Background(), conn, &msg.Query{}, &result)

	cmdErr, ok := err.(*CommandError)
	if !ok {
		t.Fatalf("expected a CommandError but got %T: %v", err, err)
	}
	if cmdErr.Code != 59 {
		t.Fatalf("expected code 59 but got %d", cmdErr.Code)
	}
	if cmdErr.Name != "CommandNotFound" {
		t.Fatalf("expected codeName CommandNotFound but got %s", cmdErr.Name)
	}
	if !IsCommandNotFound(err) {
		t.Fatalf("expected IsCommandNotFound to be true")
	}
}

func TestExecuteCommands_muliple_commands(t *testing.T) {
	t.Parallel()

	conn := &conntest.MockConnection{}
	conn.ResponseQ = append(conn.ResponseQ,
		msgtest.CreateCommandReply(bson.D{{Name: "ok", Value: 1}, {Name: "n", Value: 1}}),
		msgtest.CreateCommandReply(bson.D{{Name: "ok", Value: 1}, {Name: "n", Value: 2}}),
	)

	type result struct {
		N int `bson:"n"`
	}
	var r1, r2 result
	err := ExecuteCommands(context.Background(), conn,
		[]msg.Request{&msg.Query{ReqID: 1}, &msg.Query{ReqID: 2}},
		[]interface{}{&r1, &r2})
	if err != nil {
		t.Fatalf("expected nil err but got \"%s\"", err)
	}
	if r1.N != 1 || r2.N != 2 {
		t.Fatalf("responses paired incorrectly: %d, %d", r1.N, r2.N)
	}
}
