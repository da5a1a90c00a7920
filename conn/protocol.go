package conn

import (
	"context"
	"fmt"

	"gopkg.in/mgo.v2/bson"

	"github.com/mongowire/mongowire/internal"
	"github.com/mongowire/mongowire/msg"
)

// ExecuteCommand executes the request on the connection and unmarshals
// the result document into out.
func ExecuteCommand(ctx context.Context, c Connection, request msg.Request, out interface{}) error {
	return ExecuteCommands(ctx, c, []msg.Request{request}, []interface{}{out})
}

// ExecuteCommands executes the requests on the connection.
func ExecuteCommands(ctx context.Context, c Connection, requests []msg.Request, out []interface{}) error {
	if len(requests) != len(out) {
		panic("invalid arguments. 'out' length must equal 'requests' length")
	}

	err := c.Write(ctx, requests...)
	if err != nil {
		return &WriteFailureError{
			message: fmt.Sprintf("failed sending commands(%d)", len(requests)),
			inner:   err,
		}
	}

	var errors []error
	for i, req := range requests {
		resp, err := c.Read(ctx, req.RequestID())
		if err != nil {
			return internal.WrapErrorf(err, "failed receiving command response for %d", req.RequestID())
		}

		err = readCommandResponse(resp, out[i])
		if err != nil {
			errors = append(errors, err)
			continue
		}
	}

	return internal.MultiError(errors...)
}

func readCommandResponse(resp msg.Response, out interface{}) error {
	var cmdResp msg.CommandResponse

	switch typedResp := resp.(type) {
	case *msg.Reply:
		if typedResp.NumberReturned == 0 {
			return ErrNoDocCommandResponse
		}
		if typedResp.NumberReturned > 1 {
			return ErrMultiDocCommandResponse
		}

		if typedResp.ResponseFlags&msg.QueryFailure != 0 {
			// first document is the failure
			var doc bson.D
			ok, err := typedResp.Iter().One(&doc)
			if err != nil {
				return NewCommandResponseError(fmt.Sprintf("failed to read command failure document: %v", err))
			}
			if !ok {
				return ErrUnknownCommandFailure
			}
			return &CommandFailureError{
				Msg:      "command failure",
				Response: doc,
			}
		}

		cmdResp = typedResp
	case *msg.Msg:
		cmdResp = typedResp
	default:
		return fmt.Errorf("unsupported response message type: %T", typedResp)
	}

	// inspect the raw document for the ok field before decoding into
	// the caller's structure
	var raw bson.RawD
	if err := cmdResp.CommandDocument(&raw); err != nil {
		return NewCommandResponseError(fmt.Sprintf("failed to read command response document: %v", err))
	}

	ok := false
	var errmsg, codeName string
	var code int32
	for _, rawElem := range raw {
		switch rawElem.Name {
		case "ok":
			var v float64
			err := rawElem.Value.Unmarshal(&v)
			if err == nil && v == 1 {
				ok = true
			}
		case "errmsg":
			rawElem.Value.Unmarshal(&errmsg)
		case "codeName":
			rawElem.Value.Unmarshal(&codeName)
		case "code":
			rawElem.Value.Unmarshal(&code)
		}
	}

	if !ok {
		if errmsg == "" {
			errmsg = "command failed"
		}
		return &CommandError{
			Code:    code,
			Message: errmsg,
			Name:    codeName,
		}
	}

	if err := cmdResp.CommandDocument(out); err != nil {
		return NewCommandResponseError(fmt.Sprintf("failed to read command response document: %v", err))
	}

	return nil
}
