package core

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/AlexanderBugara/btfs/fs"
)

// Core collapses the pieces that, per the design, are effectively
// process-wide for a single mount: the engine handle, the directory
// index, the active Read set, and the scheduler cursor. One mutex and
// one condition variable guard all of it, matching the single coarse
// lock the design calls for — contention is dwarfed by network latency,
// and every critical section here is a short memcpy or a priority update.
type Core struct {
	mu   sync.Mutex
	cond *sync.Cond

	eng   Engine
	sched scheduler

	index *fs.Index // nil until metadata has arrived
	active map[*Read]struct{}

	closed bool

	log zerolog.Logger
}

// New creates a Core bound to eng. The index is not yet available;
// VFS operations block until SetIndex is called (normally by the
// engine's alert pump once torrent metadata arrives).
func New(eng Engine) *Core {
	c := &Core{
		eng:    eng,
		active: make(map[*Read]struct{}),
		log:    log.Logger.With().Str("component", "core").Logger(),
	}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// SetIndex installs the directory index once the torrent's metadata
// (and therefore its file list) is known, and wakes any VFS operation
// that was blocked waiting for it.
func (c *Core) SetIndex(files []FileInfo) {
	fsFiles := make([]fs.File, len(files))
	for i, f := range files {
		fsFiles[i] = fs.File{Path: f.Path, Size: f.Size, Index: f.Index}
	}

	c.mu.Lock()
	c.index = fs.Build(fsFiles)
	c.mu.Unlock()
	c.cond.Broadcast()

	c.log.Info().Int("files", len(files)).Msg("directory index ready")
}

// waitForIndex blocks until the index is available or the core is torn
// down. Must be called with c.mu held; returns with c.mu held.
func (c *Core) waitForIndex() {
	for c.index == nil && !c.closed {
		c.cond.Wait()
	}
}

// Getattr, Readdir and Open implement the Torrent Directory Index
// contract (design §4.1) under the Core's single lock. They block until
// metadata has arrived, per the design's error-handling table: "metadata
// fetch still pending" is not a distinct error, it's a wait.
func (c *Core) Getattr(path string) (mode uint32, size int64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.waitForIndex()
	if c.closed {
		return 0, 0, fs.ErrNoEntry
	}

	m, sz, err := c.index.Getattr(path)
	return uint32(m), sz, err
}

func (c *Core) Readdir(path string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.waitForIndex()
	if c.closed {
		return nil, fs.ErrNoEntry
	}
	return c.index.Readdir(path)
}

func (c *Core) Open(path string, writable bool) (fs.File, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.waitForIndex()
	if c.closed {
		return fs.File{}, fs.ErrNoEntry
	}
	return c.index.Open(path, writable)
}

// Read executes the read-piece reactor protocol (design §4.3) for one
// VFS read of fileIndex at [offset, offset+size). It blocks until every
// part is filled, or the core is torn down, and returns the number of
// bytes placed in buf.
func (c *Core) Read(fileIndex int, offset int64, size int, buf []byte) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	rd := NewRead(c.eng, fileIndex, offset, size, buf)
	if rd.Size() == 0 {
		return 0
	}

	c.active[rd] = struct{}{}
	defer delete(c.active, rd)

	rd.trigger(c.eng)
	c.sched.jump(c.eng, rd.firstPiece(), rd.Size())

	for !rd.Finished() && !c.closed {
		c.cond.Wait()
	}

	if rd.Finished() {
		return rd.Size()
	}
	// Torn down before every part landed: hand back whatever bytes had
	// already been copied in rather than claiming the full read.
	return rd.FilledBytes()
}

// RunAlertPump consumes the engine's alert stream until ctx is cancelled
// or the stream closes. It is meant to run on the single alert-pump
// goroutine the design calls for; all dispatch happens here, serialized.
func (c *Core) RunAlertPump(ctx context.Context) {
	alerts := c.eng.Alerts()
	for {
		select {
		case <-ctx.Done():
			return
		case a, ok := <-alerts:
			if !ok {
				return
			}
			switch a.Kind {
			case AlertReadPiece:
				c.onReadPieceDelivered(a.Piece, a.Buffer)
			case AlertPieceFinished:
				c.onPieceFinished(a.Piece)
			case AlertMetadataReady:
				c.SetIndex(c.eng.Files())
			}
		}
	}
}

// onReadPieceDelivered copies piece's bytes into every active Read that
// needs them, then broadcasts: multiple Reads may be waiting on the same
// piece, so signal (not broadcast) would leave some asleep.
func (c *Core) onReadPieceDelivered(piece int, buf []byte) {
	c.mu.Lock()
	for rd := range c.active {
		rd.copy(piece, buf)
	}
	c.mu.Unlock()
	c.cond.Broadcast()
}

// onPieceFinished re-triggers delivery for any active Read touching this
// piece and slides the scheduler window forward. No broadcast here: the
// payload itself arrives in a later AlertReadPiece.
func (c *Core) onPieceFinished(piece int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for rd := range c.active {
		rd.trigger(c.eng)
	}
	c.sched.advance(c.eng)
}

// Cursor returns the scheduler's current head-of-window piece index, for
// diagnostics (the status endpoint) and tests.
func (c *Core) Cursor() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sched.cursor
}

// Close invalidates pending Reads and wakes everything blocked in Read
// or waitForIndex, per the design's open question on concurrent
// teardown: reads are drained rather than left to process death.
func (c *Core) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.cond.Broadcast()
	c.eng.Close()
}
