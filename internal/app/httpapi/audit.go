package httpapi

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

// auditEvent is one recorded operator action against the ledger. Action names
// the operation (order_release, ledger_adjust, auth_denied, ...), Target the
// affected resource and Detail what the action did to the ledger.
type auditEvent struct {
	Time       time.Time `json:"time"`
	Action     string    `json:"action"`
	Target     string    `json:"target,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	Status     int       `json:"status"`
	RemoteAddr string    `json:"remote_addr,omitempty"`
}

// auditTrail keeps the most recent operator actions in a fixed ring and
// optionally appends each one to a JSONL file.
type auditTrail struct {
	mu    sync.Mutex
	ring  []auditEvent
	next  int
	total int
	file  *auditFile
}

func newAuditTrail(capacity int, file *auditFile) *auditTrail {
	if capacity <= 0 {
		capacity = 200
	}
	return &auditTrail{ring: make([]auditEvent, capacity), file: file}
}

func (t *auditTrail) record(ev auditEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ring[t.next] = ev
	t.next = (t.next + 1) % len(t.ring)
	if t.total < len(t.ring) {
		t.total++
	}
	if t.file != nil {
		// Persistence is best effort; a full disk must not fail the action.
		_ = t.file.append(ev)
	}
}

// recent returns up to limit events, newest first.
func (t *auditTrail) recent(limit int) []auditEvent {
	t.mu.Lock()
	defer t.mu.Unlock()

	if limit <= 0 || limit > t.total {
		limit = t.total
	}
	out := make([]auditEvent, 0, limit)
	for i := 1; i <= limit; i++ {
		out = append(out, t.ring[(t.next-i+len(t.ring))%len(t.ring)])
	}
	return out
}

// auditFile appends events as JSON lines so the trail survives restarts.
type auditFile struct {
	mu sync.Mutex
	f  *os.File
}

func openAuditFile(path string) (*auditFile, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, err
	}
	return &auditFile{f: f}, nil
}

func (a *auditFile) append(ev auditEvent) error {
	line, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	_, err = a.f.Write(append(line, '\n'))
	return err
}
