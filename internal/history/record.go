// Package history persists probe reports in a local SQLite database so the
// agent can answer "what happened on earlier runs" across restarts.
package history

import (
	"strings"
	"time"

	"github.com/monstercameron/zerver-probe/internal/core"
)

// maxStoredResponse caps the response bytes persisted per report. The full
// payload still travels on the in-memory report; history keeps enough for
// diagnosis without letting a chatty server bloat the database.
const maxStoredResponse = 64 * 1024

// Record is the persisted form of a probe report.
type Record struct {
	ID         string `gorm:"primaryKey;size:36"`
	Target     string `gorm:"index"`
	Verdict    string
	Failure    string
	Connected  bool
	Sent       bool
	TimedOut   bool
	PeerClosed bool
	ReceiveErr string

	BytesReceived int
	Response      []byte `gorm:"type:blob"`
	Truncated     bool

	ConnectMs int64
	SendMs    int64
	ReceiveMs int64

	// Warnings are newline-joined; none of them contain newlines at the
	// source.
	Warnings string

	StartedAt   time.Time
	CompletedAt time.Time `gorm:"index"`
}

// NewRecord flattens a report into its stored form, truncating oversized
// response payloads.
func NewRecord(r core.Report) Record {
	rec := Record{
		ID:            r.ID,
		Target:        r.Target,
		Verdict:       string(r.Verdict),
		Failure:       r.Failure,
		Connected:     r.Connected,
		Sent:          r.Sent,
		TimedOut:      r.TimedOut,
		PeerClosed:    r.PeerClosed,
		ReceiveErr:    r.ReceiveErr,
		BytesReceived: r.BytesReceived(),
		ConnectMs:     r.LatenciesMs["connect"],
		SendMs:        r.LatenciesMs["send"],
		ReceiveMs:     r.LatenciesMs["receive"],
		Warnings:      strings.Join(r.Warnings, "\n"),
		StartedAt:     r.StartedAt,
		CompletedAt:   r.CompletedAt,
	}
	rec.Response = append([]byte(nil), r.Response...)
	if len(rec.Response) > maxStoredResponse {
		rec.Response = rec.Response[:maxStoredResponse]
		rec.Truncated = true
	}
	return rec
}

// WarningList splits the stored warnings back into their original form.
func (rec Record) WarningList() []string {
	if rec.Warnings == "" {
		return nil
	}
	return strings.Split(rec.Warnings, "\n")
}
