// Package transport implements the length-prefixed JSON framing used to
// talk to an already-spawned debug adapter process: "Content-Length: <N>"
// header, blank line, then N bytes of UTF-8 JSON. It correlates requests to
// responses by sequence number and fans events out to subscribers.
//
// go.lsp.dev/jsonrpc2 (the teacher's transport library) decodes strictly
// into the JSON-RPC 2.0 envelope (jsonrpc/id/method); the adapter protocol's
// frames use the seq/type/command/request_seq envelope described in the
// spec's data model, which that decoder cannot represent without forking
// it. The header-parsing state machine here is therefore hand-written
// against bufio.Reader and encoding/json, the same way the teacher reaches
// for explicit byte-level state machines in internal/fs and
// internal/executor rather than a third-party framing library.
package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/uber/dbg-bridge/src/bridge/entity"
	bridgeerrors "github.com/uber/dbg-bridge/src/bridge/internal/errors"
	"go.uber.org/zap"
)

const headerTerminator = "\r\n\r\n"
const contentLengthPrefix = "Content-Length:"

// RequestDispatcher answers reverse-direction requests sent BY the adapter.
// The default behavior (nil dispatcher) replies with an empty success body.
type RequestDispatcher func(ctx context.Context, msg *entity.AdapterMessage) (interface{}, error)

// Transport is the framed request/response/event channel to one adapter
// process. Send correlates by sequence number; Events/ServerErrors/Exit are
// observable streams a caller can range over.
type Transport interface {
	// Send writes a request frame and returns a future for its response.
	Send(ctx context.Context, command string, args interface{}) (<-chan Result, error)
	// SendResponse answers a reverse-direction request from the adapter.
	SendResponse(ctx context.Context, requestSeq int, success bool, body interface{}) error
	// Events streams adapter-initiated event frames.
	Events() <-chan *entity.AdapterMessage
	// ServerErrors streams non-terminal framing/decode failures.
	ServerErrors() <-chan error
	// Exit closes once the transport has torn down, terminally.
	Exit() <-chan struct{}
	// Close shuts down the transport, failing every pending request with
	// ErrTransportClosed. Idempotent.
	Close() error
}

// Result is the outcome of one Send call.
type Result struct {
	Body    entity.RawMessage
	Command string
	Err     error
}

type pendingRequest struct {
	command string
	resultC chan Result
}

type transport struct {
	rw              io.ReadWriteCloser
	writer          *bufio.Writer
	logger          *zap.SugaredLogger
	dispatchRequest RequestDispatcher

	writeMu sync.Mutex
	seq     int

	pendingMu sync.Mutex
	pending   map[int]*pendingRequest

	events       chan *entity.AdapterMessage
	serverErrors chan error
	exit         chan struct{}
	closeOnce    sync.Once
}

// New wraps rw (the adapter child's combined stdio pipe, or any
// io.ReadWriteCloser framed the same way) in a Transport and starts its
// read loop. dispatchRequest may be nil.
func New(rw io.ReadWriteCloser, logger *zap.SugaredLogger, dispatchRequest RequestDispatcher) Transport {
	t := &transport{
		rw:              rw,
		writer:          bufio.NewWriter(rw),
		logger:          logger,
		dispatchRequest: dispatchRequest,
		pending:         make(map[int]*pendingRequest),
		events:          make(chan *entity.AdapterMessage, 64),
		serverErrors:    make(chan error, 16),
		exit:            make(chan struct{}),
	}
	go t.readLoop()
	return t
}

func (t *transport) Events() <-chan *entity.AdapterMessage { return t.events }
func (t *transport) ServerErrors() <-chan error            { return t.serverErrors }
func (t *transport) Exit() <-chan struct{}                 { return t.exit }

func (t *transport) Send(ctx context.Context, command string, args interface{}) (<-chan Result, error) {
	t.writeMu.Lock()
	t.seq++
	seq := t.seq
	t.writeMu.Unlock()

	msg := entity.AdapterMessage{
		Seq:       seq,
		Type:      entity.MessageTypeRequest,
		Command:   command,
		Arguments: args,
	}

	resultC := make(chan Result, 1)
	t.pendingMu.Lock()
	t.pending[seq] = &pendingRequest{command: command, resultC: resultC}
	t.pendingMu.Unlock()

	if err := t.writeFrame(msg); err != nil {
		t.pendingMu.Lock()
		delete(t.pending, seq)
		t.pendingMu.Unlock()
		return nil, err
	}
	return resultC, nil
}

func (t *transport) SendResponse(ctx context.Context, requestSeq int, success bool, body interface{}) error {
	t.writeMu.Lock()
	t.seq++
	seq := t.seq
	t.writeMu.Unlock()

	msg := entity.AdapterMessage{
		Seq:        seq,
		Type:       entity.MessageTypeResponse,
		RequestSeq: requestSeq,
		Success:    success,
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	msg.Body = raw
	return t.writeFrame(msg)
}

func (t *transport) writeFrame(msg entity.AdapterMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding adapter frame: %w", err)
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if _, err := fmt.Fprintf(t.writer, "%s %d\r\n\r\n", contentLengthPrefix, len(payload)); err != nil {
		return err
	}
	if _, err := t.writer.Write(payload); err != nil {
		return err
	}
	return t.writer.Flush()
}

// readLoop implements the decoder state machine from the spec: accumulate
// bytes, find the Content-Length header, then wait for the body to arrive
// before decoding and dispatching a full frame. Runs until the stream
// closes or a fatal read error occurs.
func (t *transport) readLoop() {
	defer t.teardown()

	reader := bufio.NewReader(t.rw)
	contentLength := -1

	for {
		if contentLength < 0 {
			header, err := t.readHeader(reader)
			if err != nil {
				if err == io.EOF {
					return
				}
				t.reportFramingError(fmt.Sprintf("reading header: %v", err))
				return
			}
			n, err := parseContentLength(header)
			if err != nil {
				t.reportFramingError(err.Error())
				continue
			}
			contentLength = n
		}

		if contentLength == 0 {
			contentLength = -1
			continue
		}

		body := make([]byte, contentLength)
		if _, err := io.ReadFull(reader, body); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return
			}
			t.reportFramingError(fmt.Sprintf("reading body: %v", err))
			return
		}
		contentLength = -1

		var msg entity.AdapterMessage
		if err := json.Unmarshal(body, &msg); err != nil {
			t.reportFramingError(fmt.Sprintf("decoding json: %v", err))
			continue
		}
		t.dispatch(&msg)
	}
}

func (t *transport) readHeader(r *bufio.Reader) (string, error) {
	var header bytes.Buffer
	for {
		line, err := r.ReadString('\n')
		header.WriteString(line)
		if err != nil {
			return "", err
		}
		if strings.HasSuffix(header.String(), headerTerminator) {
			return header.String(), nil
		}
	}
}

func parseContentLength(header string) (int, error) {
	for _, line := range strings.Split(header, "\r\n") {
		if strings.HasPrefix(line, contentLengthPrefix) {
			raw := strings.TrimSpace(strings.TrimPrefix(line, contentLengthPrefix))
			n, err := strconv.Atoi(raw)
			if err != nil {
				return 0, fmt.Errorf("invalid Content-Length %q: %w", raw, err)
			}
			return n, nil
		}
	}
	return 0, fmt.Errorf("header missing Content-Length: %q", header)
}

func (t *transport) dispatch(msg *entity.AdapterMessage) {
	switch msg.Type {
	case entity.MessageTypeEvent:
		// Non-blocking: a wedged subscriber must never stall the read loop,
		// which would also stall replies to in-flight requests sharing it.
		select {
		case t.events <- msg:
		default:
			t.logger.Warnw("dropping adapter event, subscriber too slow", "event", msg.Event)
		}

	case entity.MessageTypeResponse:
		t.pendingMu.Lock()
		pr, ok := t.pending[msg.RequestSeq]
		if ok {
			delete(t.pending, msg.RequestSeq)
		}
		t.pendingMu.Unlock()
		if !ok {
			t.logger.Warnw("no pending request for response", "request_seq", msg.RequestSeq)
			return
		}
		res := Result{Body: msg.Body, Command: pr.command}
		if !msg.Success {
			res.Err = &bridgeerrors.AdapterError{Command: pr.command, Message: msg.Message, Body: msg.Body}
		}
		pr.resultC <- res

	case entity.MessageTypeRequest:
		ctx := context.Background()
		var (
			body interface{}
			err  error
		)
		if t.dispatchRequest != nil {
			body, err = t.dispatchRequest(ctx, msg)
		}
		if sendErr := t.SendResponse(ctx, msg.Seq, err == nil, body); sendErr != nil {
			t.logger.Warnw("failed responding to adapter-initiated request", "error", sendErr)
		}

	default:
		t.reportFramingError(fmt.Sprintf("unknown message type %q", msg.Type))
	}
}

func (t *transport) reportFramingError(reason string) {
	err := &bridgeerrors.ProtocolFramingError{Reason: reason}
	select {
	case t.serverErrors <- err:
	default:
	}
}

func (t *transport) teardown() {
	t.pendingMu.Lock()
	for seq, pr := range t.pending {
		pr.resultC <- Result{Err: bridgeerrors.ErrTransportClosed}
		delete(t.pending, seq)
	}
	t.pendingMu.Unlock()
	close(t.exit)
}

func (t *transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		err = t.rw.Close()
	})
	return err
}
