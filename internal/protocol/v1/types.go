// Package v1 implements the daemon's JSON/binary action protocol: request
// dispatch, permission checks, and the fixed binary frame format used for
// attachment-carrying actions.
package v1

import (
	"encoding/json"

	"github.com/jg-phare/mcslauncherd/internal/auth"
	"github.com/jg-phare/mcslauncherd/internal/retcode"
)

// Request is one decoded JSON text frame.
type Request struct {
	Action string          `json:"action"`
	Params json.RawMessage `json:"params"`
	ID     string          `json:"id"`
}

// Response is the JSON reply to a Request. ID echoes the request id
// verbatim; a request whose id could not be parsed gets an empty one.
type Response struct {
	Status  string          `json:"status"`
	RetCode int             `json:"retcode"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
	ID      string          `json:"id"`
}

// Context carries the per-connection state an action handler needs.
type Context struct {
	Conn       auth.ConnectionContext
	Attachment []byte // set only for binary frames carrying file_upload_chunk_raw
}

// Handler implements one action. It returns the response payload (marshaled
// to Data) or an error; a *retcode.Error passes its classification through,
// anything else is wrapped as a request error.
type Handler func(ctx *Context, params json.RawMessage) (any, error)

func okResponse(id string, data json.RawMessage) Response {
	return Response{Status: "ok", RetCode: int(retcode.OK), Message: "OK", Data: data, ID: id}
}

func errorResponse(id string, err error) Response {
	if rc, ok := err.(*retcode.Error); ok {
		return Response{Status: "error", RetCode: int(rc.Code), Message: rc.Message, ID: id}
	}
	return Response{Status: "error", RetCode: int(retcode.RequestError), Message: err.Error(), ID: id}
}
