package lwshm

import (
	"github.com/vela-ipc/lwshm/dbufnt"
	"github.com/vela-ipc/lwshm/dbufpf"
	"github.com/vela-ipc/lwshm/dbufsimple"
	"github.com/vela-ipc/lwshm/ringbroadcast"
)

// dbufntReader, dbufpfReader and dbufsimpleReader adapt each variant's own
// Frame type to the shared Frame type so all four variants can satisfy the
// single Reader interface above.

type dbufntReader struct{ r *dbufnt.Reader }

func (a dbufntReader) Latest() (Frame, bool, error) {
	f, ok, err := a.r.Latest()
	return Frame{Seq: f.Seq, TimestampNs: f.TimestampNs, Data: f.Data}, ok, err
}
func (a dbufntReader) ReadWithTimeout(timeoutMs int64) (Frame, bool, error) {
	f, ok, err := a.r.ReadWithTimeout(timeoutMs)
	return Frame{Seq: f.Seq, TimestampNs: f.TimestampNs, Data: f.Data}, ok, err
}
func (a dbufntReader) IsWriterAlive(timeoutMs int64) bool { return a.r.IsWriterAlive(timeoutMs) }
func (a dbufntReader) Close() error                       { return a.r.Close() }

type dbufpfReader struct{ r *dbufpf.Reader }

func (a dbufpfReader) Latest() (Frame, bool, error) {
	f, ok, err := a.r.Latest()
	return Frame{Seq: f.Seq, TimestampNs: f.TimestampNs, Data: f.Data}, ok, err
}
func (a dbufpfReader) ReadWithTimeout(timeoutMs int64) (Frame, bool, error) {
	f, ok, err := a.r.ReadWithTimeout(timeoutMs)
	return Frame{Seq: f.Seq, TimestampNs: f.TimestampNs, Data: f.Data}, ok, err
}
func (a dbufpfReader) IsWriterAlive(timeoutMs int64) bool { return a.r.IsWriterAlive(timeoutMs) }
func (a dbufpfReader) Close() error                       { return a.r.Close() }

type dbufsimpleReader struct{ r *dbufsimple.Reader }

func (a dbufsimpleReader) Latest() (Frame, bool, error) {
	f, ok, err := a.r.Latest()
	return Frame{Seq: f.Seq, TimestampNs: f.TimestampNs, Data: f.Data}, ok, err
}
func (a dbufsimpleReader) ReadWithTimeout(timeoutMs int64) (Frame, bool, error) {
	f, ok, err := a.r.ReadWithTimeout(timeoutMs)
	return Frame{Seq: f.Seq, TimestampNs: f.TimestampNs, Data: f.Data}, ok, err
}
func (a dbufsimpleReader) IsWriterAlive(timeoutMs int64) bool { return a.r.IsWriterAlive(timeoutMs) }
func (a dbufsimpleReader) Close() error                       { return a.r.Close() }

// ringWriter adapts ringbroadcast.Producer's Publish method to Write.
type ringWriter struct{ p *ringbroadcast.Producer }

func (w *ringWriter) Write(p []byte) error { return w.p.Publish(p) }
func (w *ringWriter) Destroy() error       { return w.p.Destroy() }

// ringReader adapts ringbroadcast.Consumer; closing a RING reader tears
// down its owned ring region and clears its registry entry, matching the
// variant's stated consumer-destruction semantics.
type ringReader struct{ c *ringbroadcast.Consumer }

func (r *ringReader) Latest() (Frame, bool, error) {
	f, ok, err := r.c.Latest()
	return Frame{Seq: f.Seq, TimestampNs: f.TimestampNs, Data: f.Data}, ok, err
}
func (r *ringReader) ReadWithTimeout(timeoutMs int64) (Frame, bool, error) {
	f, ok, err := r.c.ReadWithTimeout(timeoutMs)
	return Frame{Seq: f.Seq, TimestampNs: f.TimestampNs, Data: f.Data}, ok, err
}
func (r *ringReader) IsWriterAlive(timeoutMs int64) bool { return r.c.IsWriterAlive(timeoutMs) }
func (r *ringReader) Close() error                       { return r.c.Destroy() }
