// Package entity contains the domain data model for the debugger protocol
// translator: adapter wire frames, the breakpoint ledger's records, thread
// bookkeeping, and the flags a session carries through its lifetime.
package entity

import (
	"encoding/json"

	"github.com/gofrs/uuid"
)

type keyType string

// SessionContextKey identifies the session UUID stored in a context.Context.
const SessionContextKey keyType = "SessionUUID"

// MessageType distinguishes the three adapter wire message shapes.
type MessageType string

const (
	// MessageTypeRequest carries a command and arguments, awaiting a Response.
	MessageTypeRequest MessageType = "request"
	// MessageTypeResponse answers a prior Request by RequestSeq.
	MessageTypeResponse MessageType = "response"
	// MessageTypeEvent is an unsolicited notification from the adapter.
	MessageTypeEvent MessageType = "event"
)

// AdapterMessage is the generic envelope of one length-prefixed adapter
// frame, per spec: a request carries Command/Arguments, a response carries
// RequestSeq/Success/Body, an event carries Event/Body.
type AdapterMessage struct {
	Seq        int             `json:"seq"`
	Type       MessageType     `json:"type"`
	Command    string          `json:"command,omitempty"`
	Arguments  interface{}     `json:"arguments,omitempty"`
	RequestSeq int             `json:"request_seq,omitempty"`
	Success    bool            `json:"success"`
	Event      string          `json:"event,omitempty"`
	Body       RawMessage      `json:"body,omitempty"`
	Message    string          `json:"message,omitempty"`
}

// RawMessage aliases json.RawMessage so it round-trips verbatim JSON instead
// of being base64-encoded like a plain []byte field would be.
type RawMessage = json.RawMessage

// ThreadState is the running/paused state of one adapter thread.
type ThreadState string

const (
	// ThreadStateRunning means the thread is not currently stopped.
	ThreadStateRunning ThreadState = "running"
	// ThreadStatePaused means the thread is stopped at a breakpoint or step.
	ThreadStatePaused ThreadState = "paused"
)

// StackFrame is one translated adapter call frame.
type StackFrame struct {
	ID           int
	Name         string
	SourcePath   string
	HasSource    bool
	Line         int
	Column       int
	VariablesRef int
}

// ThreadInfo tracks the lifecycle and last-known stack of one adapter thread.
type ThreadInfo struct {
	ID               int
	State            ThreadState
	CallFrames       []StackFrame
	CallStackLoaded  bool
	StopReason       string
}

// BreakpointRecord is the ledger's canonical view of one breakpoint. At most
// one record exists per (Path, Line) pair; ID is non-nil only after the
// first successful bulk-sync round trip; Resolved is monotonic.
type BreakpointRecord struct {
	ID           string
	SourcePath   string
	Line         int
	OriginalLine int
	Condition    string
	HitCount     int
	Resolved     bool
}

// HasID reports whether the adapter (or the synthetic allocator) has
// assigned this record an id yet.
func (b *BreakpointRecord) HasID() bool {
	return b != nil && b.ID != ""
}

// SessionFlags holds the small amount of state the command router tracks
// across the lifetime of one translator session.
type SessionFlags struct {
	ConfigDoneSent         bool
	ExceptionFilters       []string
	PausedThreadID         *int
	PausedThreadIDPrevious *int
	AdapterReady           bool
}

// ClientCommand is one inbound request from the client protocol.
type ClientCommand struct {
	ID     int
	Method string
	Params RawMessage
}

// ClientResponse answers a ClientCommand by ID.
type ClientResponse struct {
	ID     int
	Result interface{}
	Error  *ClientResponseError
}

// ClientResponseError is the error shape of a failed ClientResponse.
type ClientResponseError struct {
	Message string `json:"message"`
}

// ClientEvent is an unsolicited client-protocol event, sent without an ID.
type ClientEvent struct {
	Method string
	Params interface{}
}

// SessionID is a convenience alias so callers don't need to import gofrs/uuid
// just to type a session identifier.
type SessionID = uuid.UUID

// Session identifies one bridge session: one client connection driving one
// spawned adapter child process.
type Session struct {
	ID            SessionID
	AdapterKind   string
	WorkspaceRoot string
}
