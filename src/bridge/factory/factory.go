// Package factory holds small test-data builders shared across this
// module's test suites, so fixture shapes live in one place instead of
// being re-typed at every call site.
package factory

import (
	"github.com/gofrs/uuid"

	"github.com/uber/dbg-bridge/src/bridge/entity"
)

// UUID is a user-defined factory for a random uuid.UUID.
func UUID() uuid.UUID {
	return uuid.Must(uuid.NewV4())
}

// StackFrame builds a StackFrame with the given id and name at the given
// line, with a source path.
func StackFrame(id int, name string, line int) entity.StackFrame {
	return entity.StackFrame{
		ID:         id,
		Name:       name,
		SourcePath: "/workspace/main.go",
		HasSource:  true,
		Line:       line,
		Column:     1,
	}
}

// ClientCommand builds a ClientCommand with the given id, method, and
// already-marshaled params.
func ClientCommand(id int, method string, params entity.RawMessage) entity.ClientCommand {
	return entity.ClientCommand{ID: id, Method: method, Params: params}
}

// BreakpointRecordResolved builds a resolved BreakpointRecord for the given
// path/line, as it would look after a successful sync round trip.
func BreakpointRecordResolved(path string, line int, id string) entity.BreakpointRecord {
	return entity.BreakpointRecord{
		ID:         id,
		SourcePath: path,
		Line:       line,
		Resolved:   true,
	}
}
