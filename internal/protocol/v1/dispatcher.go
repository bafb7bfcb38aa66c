package v1

import (
	"encoding/json"
	"fmt"

	"github.com/jg-phare/mcslauncherd/internal/permission"
	"github.com/jg-phare/mcslauncherd/internal/retcode"
)

type registration struct {
	handler  Handler
	required permission.Matcher // nil means no permission needed
}

// Dispatcher routes decoded Requests to registered action Handlers,
// enforcing the caller's permission set before invoking each.
type Dispatcher struct {
	actions map[string]registration
}

// NewDispatcher creates an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{actions: make(map[string]registration)}
}

// Register adds an action. required is the permission a connection's set
// must cover to invoke it; nil registers an unrestricted action.
func (d *Dispatcher) Register(action string, required permission.Matcher, handler Handler) {
	d.actions[action] = registration{handler: handler, required: required}
}

// HandleText decodes a JSON text frame, dispatches it, and returns the
// marshaled Response.
func (d *Dispatcher) HandleText(ctx *Context, raw []byte) []byte {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return mustMarshal(errorResponse("", retcode.WithMessage(retcode.BadRequest, err.Error())))
	}
	return mustMarshal(d.dispatch(ctx, req))
}

// HandleBinary decodes a binary frame (magic + varints + body + attachment),
// attaches the raw attachment to ctx for the body's handler to consume (only
// file_upload_chunk_raw does), and dispatches the body as a normal Request.
func (d *Dispatcher) HandleBinary(ctx *Context, raw []byte) []byte {
	frame, err := ParseBinaryFrame(raw)
	if err != nil {
		return mustMarshal(errorResponse("", retcode.WithMessage(retcode.BadRequest, err.Error())))
	}
	var req Request
	if err := json.Unmarshal(frame.Body, &req); err != nil {
		return mustMarshal(errorResponse("", retcode.WithMessage(retcode.BadRequest, err.Error())))
	}
	ctx.Attachment = frame.Attachment
	return mustMarshal(d.dispatch(ctx, req))
}

// RateLimited synthesizes the backpressure response for a frame that could
// not be admitted into the connection's task pool, preserving the request id
// when the frame parses.
func RateLimited(raw []byte, binary bool) []byte {
	id := ""
	body := raw
	if binary {
		if frame, err := ParseBinaryFrame(raw); err == nil {
			body = frame.Body
		} else {
			body = nil
		}
	}
	if body != nil {
		var req Request
		if err := json.Unmarshal(body, &req); err == nil {
			id = req.ID
		}
	}
	return mustMarshal(errorResponse(id, retcode.New(retcode.RateLimitExceeded)))
}

func (d *Dispatcher) dispatch(ctx *Context, req Request) Response {
	reg, ok := d.actions[req.Action]
	if !ok {
		return errorResponse(req.ID, retcode.WithMessage(retcode.UnknownAction, req.Action))
	}
	if reg.required != nil && !ctx.Conn.Perms.Matches(reg.required) {
		return errorResponse(req.ID, retcode.WithMessage(retcode.PermissionDenied, req.Action))
	}

	result, err := reg.handler(ctx, req.Params)
	if err != nil {
		return errorResponse(req.ID, err)
	}

	data, err := json.Marshal(result)
	if err != nil {
		return errorResponse(req.ID, retcode.WithMessage(retcode.UnexpectedError, err.Error()))
	}
	return okResponse(req.ID, data)
}

func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		// Response is our own well-formed type; a marshal failure here
		// indicates a programming error, not a runtime condition to recover from.
		panic(fmt.Sprintf("v1: marshal response: %v", err))
	}
	return data
}
