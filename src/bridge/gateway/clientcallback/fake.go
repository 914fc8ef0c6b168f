package clientcallback

import "sync"

// Fake is an in-memory Sink for tests: it records every message,
// notification, and output line instead of writing anywhere.
type Fake struct {
	mu            sync.Mutex
	Messages      []WireMessage
	Notifications []Notification
	OutputLines   []OutputLine
	closed        bool
}

// NewFake returns a ready-to-use Fake sink.
func NewFake() *Fake {
	return &Fake{}
}

func (f *Fake) SendMessage(msg WireMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Messages = append(f.Messages, msg)
	return nil
}

func (f *Fake) Notify(n Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Notifications = append(f.Notifications, n)
}

func (f *Fake) Output(line OutputLine) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.OutputLines = append(f.OutputLines, line)
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Events returns the recorded client-protocol events, in order.
func (f *Fake) Events() []WireMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []WireMessage
	for _, m := range f.Messages {
		if m.Event != nil {
			out = append(out, m)
		}
	}
	return out
}

// Responses returns the recorded client-protocol responses, in order.
func (f *Fake) Responses() []WireMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []WireMessage
	for _, m := range f.Messages {
		if m.Response != nil {
			out = append(out, m)
		}
	}
	return out
}
