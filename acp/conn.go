package acp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
)

// Agent is the set of client-facing operations an ACP agent provides. Conn
// dispatches incoming requests to it; blocking operations receive a context
// cancelled when the connection shuts down.
type Agent interface {
	Initialize(ctx context.Context, req *InitializeRequest) (*InitializeResponse, error)
	Authenticate(ctx context.Context, req *AuthenticateRequest) (*AuthenticateResponse, error)
	NewSession(ctx context.Context, req *NewSessionRequest) (*NewSessionResponse, error)
	LoadSession(ctx context.Context, req *LoadSessionRequest) (*LoadSessionResponse, error)
	Prompt(ctx context.Context, req *PromptRequest) (*PromptResponse, error)
	SetMode(ctx context.Context, req *SetSessionModeRequest) (*SetSessionModeResponse, error)
	SetModel(ctx context.Context, req *SetSessionModelRequest) (*SetSessionModelResponse, error)
	Cancel(ctx context.Context, note *CancelNotification) error
}

// Conn is one ACP connection: newline-delimited JSON-RPC 2.0 frames, the
// client on the other end. It serves agent methods and carries agent-sent
// notifications and requests (session/update, session/request_permission).
type Conn struct {
	agent   Agent
	logger  *slog.Logger
	in      *bufio.Reader
	enc     *json.Encoder
	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[int64]chan *JSONRPCResponse
	idGen   idGenerator
	closed  bool
}

// ConnOption configures a Conn.
type ConnOption func(*Conn)

// WithLogger sets the connection logger.
func WithLogger(logger *slog.Logger) ConnOption {
	return func(c *Conn) {
		c.logger = logger
	}
}

// NewConn creates a connection over the given transport, typically
// stdin/stdout of the bridge process.
func NewConn(r io.Reader, w io.Writer, agent Agent, opts ...ConnOption) *Conn {
	c := &Conn{
		agent:   agent,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		in:      bufio.NewReader(r),
		enc:     json.NewEncoder(w),
		pending: make(map[int64]chan *JSONRPCResponse),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Serve reads frames until EOF or ctx cancellation. Each incoming request is
// dispatched on its own goroutine so a session/cancel notification can be
// processed while a session/prompt is still in flight.
func (c *Conn) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer c.close()

	for {
		line, err := c.in.ReadBytes('\n')
		if len(line) == 0 && err != nil {
			if err == io.EOF || errors.Is(err, io.ErrClosedPipe) {
				return nil
			}
			return err
		}

		c.handleFrame(ctx, line)

		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

// handleFrame triages one wire frame into request, response, or notification.
func (c *Conn) handleFrame(ctx context.Context, line []byte) {
	var base struct {
		ID     *int64 `json:"id,omitempty"`
		Method string `json:"method,omitempty"`
	}
	if err := json.Unmarshal(line, &base); err != nil {
		c.logger.Warn("dropping malformed frame", "error", err)
		return
	}

	switch {
	case base.Method != "" && base.ID != nil:
		var req JSONRPCRequest
		if err := json.Unmarshal(line, &req); err != nil {
			c.writeFrame(newErrorResponse(*base.ID, ErrCodeParseError, err.Error()))
			return
		}
		go c.dispatch(ctx, &req)

	case base.ID != nil:
		var resp JSONRPCResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			c.logger.Warn("dropping malformed response", "error", err)
			return
		}
		c.settle(&resp)

	case base.Method != "":
		var note JSONRPCNotification
		if err := json.Unmarshal(line, &note); err != nil {
			return
		}
		go c.dispatchNotification(ctx, &note)
	}
}

// dispatch routes a client request to the agent implementation.
func (c *Conn) dispatch(ctx context.Context, req *JSONRPCRequest) {
	switch req.Method {
	case MethodInitialize:
		handle(ctx, c, req, c.agent.Initialize)
	case MethodAuthenticate:
		handle(ctx, c, req, c.agent.Authenticate)
	case MethodSessionNew:
		handle(ctx, c, req, c.agent.NewSession)
	case MethodSessionLoad:
		handle(ctx, c, req, c.agent.LoadSession)
	case MethodSessionPrompt:
		handle(ctx, c, req, c.agent.Prompt)
	case MethodSessionSetMode:
		handle(ctx, c, req, c.agent.SetMode)
	case MethodSessionSetModel:
		handle(ctx, c, req, c.agent.SetModel)
	default:
		c.writeFrame(newErrorResponse(req.ID, ErrCodeMethodNotFound, "unknown method: "+req.Method))
	}
}

// handle decodes params, invokes fn, and writes the response frame.
func handle[Req any, Resp any](ctx context.Context, c *Conn, req *JSONRPCRequest, fn func(context.Context, *Req) (*Resp, error)) {
	var params Req
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			c.writeFrame(newErrorResponse(req.ID, ErrCodeInvalidParams, err.Error()))
			return
		}
	}

	resp, err := fn(ctx, &params)
	if err != nil {
		c.writeFrame(newErrorResponse(req.ID, errorCode(err), err.Error()))
		return
	}

	frame, err := newResponse(req.ID, resp)
	if err != nil {
		c.writeFrame(newErrorResponse(req.ID, ErrCodeInternalError, err.Error()))
		return
	}
	c.writeFrame(frame)
}

// errorCode maps agent errors onto JSON-RPC codes.
func errorCode(err error) int {
	switch {
	case errors.Is(err, ErrAuthRequired):
		return ErrCodeAuthRequired
	case errors.Is(err, ErrSessionNotFound):
		return ErrCodeInvalidParams
	default:
		return ErrCodeInternalError
	}
}

func (c *Conn) dispatchNotification(ctx context.Context, note *JSONRPCNotification) {
	if note.Method != MethodSessionCancel {
		return
	}
	var params CancelNotification
	if err := json.Unmarshal(note.Params, &params); err != nil {
		return
	}
	if err := c.agent.Cancel(ctx, &params); err != nil {
		c.logger.Warn("cancel failed", "sessionId", params.SessionID, "error", err)
	}
}

// settle routes a response to its pending waiter.
func (c *Conn) settle(resp *JSONRPCResponse) {
	c.mu.Lock()
	ch, ok := c.pending[resp.ID]
	if ok {
		delete(c.pending, resp.ID)
	}
	c.mu.Unlock()

	if ok {
		select {
		case ch <- resp:
		default:
		}
	}
}

// SessionUpdate sends a session/update notification to the client.
func (c *Conn) SessionUpdate(sessionID string, update SessionUpdate) error {
	note, err := newNotification(MethodSessionUpdate, SessionNotification{
		SessionID: sessionID,
		Update:    update,
	})
	if err != nil {
		return err
	}
	return c.writeFrame(note)
}

// RequestPermission asks the client to authorize a tool call and waits for
// its decision.
func (c *Conn) RequestPermission(ctx context.Context, req *RequestPermissionRequest) (*RequestPermissionResponse, error) {
	id := c.idGen.Next()

	frame, err := newRequest(id, MethodRequestPermission, req)
	if err != nil {
		return nil, err
	}

	ch := make(chan *JSONRPCResponse, 1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrConnClosed
	}
	c.pending[id] = ch
	c.mu.Unlock()

	if err := c.writeFrame(frame); err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, err
	}

	select {
	case resp := <-ch:
		if resp == nil {
			return nil, ErrConnClosed
		}
		if resp.Error != nil {
			return nil, &RPCError{Code: resp.Error.Code, Message: resp.Error.Message}
		}
		var out RequestPermissionResponse
		if err := json.Unmarshal(resp.Result, &out); err != nil {
			return nil, &ProtocolError{Message: "failed to parse permission response", Cause: err}
		}
		return &out, nil
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, ctx.Err()
	}
}

// writeFrame serializes one frame; frames are newline-delimited by the
// encoder.
func (c *Conn) writeFrame(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.enc.Encode(v)
}

// close fails all pending outgoing requests.
func (c *Conn) close() {
	c.mu.Lock()
	c.closed = true
	for id, ch := range c.pending {
		delete(c.pending, id)
		close(ch)
	}
	c.mu.Unlock()
}
