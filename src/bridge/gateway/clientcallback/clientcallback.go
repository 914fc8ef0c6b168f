// Package clientcallback defines the sink the translator writes to: wire
// messages destined for the client protocol, toast-level notifications, and
// raw user-visible output lines. The translator core only ever depends on
// the Sink interface; wiring it to a real client transport is out of scope.
package clientcallback

import (
	"encoding/json"

	"github.com/uber/dbg-bridge/src/bridge/entity"
)

// NotificationLevel is the severity of a toast-style notification.
type NotificationLevel string

const (
	NotificationInfo    NotificationLevel = "info"
	NotificationWarning NotificationLevel = "warning"
	NotificationError   NotificationLevel = "error"
)

// Notification is one toast-level message routed outside the normal wire
// protocol, e.g. a startup failure or an adapter-emitted user prompt.
type Notification struct {
	Level   NotificationLevel
	Message string
}

// OutputLine is one line of debuggee output, already category-mapped.
type OutputLine struct {
	Category string
	Text     string
}

// Sink is the outbound half of one session: three independent channels a
// CommandRouter or EventTranslator writes to, never reads from.
type Sink interface {
	// SendMessage writes one client-protocol wire message (a response or an
	// event) as JSON.
	SendMessage(msg WireMessage) error
	// Notify surfaces a toast-level notification to the UI shell.
	Notify(n Notification)
	// Output emits one line of debuggee output.
	Output(line OutputLine)
	// Close idempotently tears down the sink.
	Close() error
}

// WireMessage is either a ClientResponse or a ClientEvent, tagged so a Sink
// implementation can serialize it without a type switch on the caller side.
type WireMessage struct {
	Response *entity.ClientResponse
	Event    *entity.ClientEvent
}

// MarshalJSON renders the wrapped response or event in the client wire
// shape described by the protocol: {id,result}/{id,error} for responses,
// {method,params} for events.
func (m WireMessage) MarshalJSON() ([]byte, error) {
	if m.Response != nil {
		if m.Response.Error != nil {
			return json.Marshal(struct {
				ID    int                          `json:"id"`
				Error *entity.ClientResponseError `json:"error"`
			}{ID: m.Response.ID, Error: m.Response.Error})
		}
		return json.Marshal(struct {
			ID     int         `json:"id"`
			Result interface{} `json:"result"`
		}{ID: m.Response.ID, Result: m.Response.Result})
	}
	return json.Marshal(struct {
		Method string      `json:"method"`
		Params interface{} `json:"params"`
	}{Method: m.Event.Method, Params: m.Event.Params})
}
