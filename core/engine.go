// Package core implements the read–piece reactor: the subsystem that
// turns VFS read requests into piece-level fetches, steers a sliding
// priority window, and gates request goroutines on piece-ready events
// from the BitTorrent engine. It is deliberately engine-agnostic — it
// talks only to the Engine interface below, never to
// github.com/anacrolix/torrent directly, so it can be driven by a fake
// in tests and by the real adapter (package engine) in production.
package core

// Priority mirrors the 0..7 scale a BitTorrent engine exposes for piece
// fetch priority, where 0 disables fetch entirely.
type Priority int

const (
	PriorityNone Priority = 0
	PriorityLow  Priority = 1
	PriorityHigh Priority = 7
)

// FileInfo describes one file inside the torrent, as reported by the engine.
type FileInfo struct {
	Path  string
	Size  int64
	Index int
}

// AlertKind tags the variant carried by an Alert.
type AlertKind int

const (
	// AlertPieceFinished corresponds to a piece_finished event: the piece
	// hash-verified and is now available, but no payload is attached.
	AlertPieceFinished AlertKind = iota
	// AlertReadPiece corresponds to a read_piece event: the requested
	// piece's bytes have been read back from storage.
	AlertReadPiece
	// AlertMetadataReady corresponds to a torrent_added/metadata_received
	// event: the file list and piece layout are now known, so the
	// directory index can be built. Delivered at most once.
	AlertMetadataReady
)

// Alert is one event off the engine's alert stream.
type Alert struct {
	Kind   AlertKind
	Piece  int
	Buffer []byte // valid only for AlertReadPiece; exactly PieceSize(Piece) bytes
}

// Engine abstracts the BitTorrent engine. The core package never assumes
// more than this about how pieces are fetched, verified or stored.
type Engine interface {
	// Files lists the torrent's files. Only valid once metadata has arrived.
	Files() []FileInfo
	// FileSize returns the size of file fileIndex.
	FileSize(fileIndex int) int64
	// NumPieces returns the torrent's total piece count.
	NumPieces() int
	// PieceSize returns the byte length of piece (the last piece may be short).
	PieceSize(piece int) int
	// Have reports whether piece has already been downloaded and verified.
	Have(piece int) bool
	// MapFile maps a byte offset within a file to the piece and the
	// intra-piece start offset that covers it.
	MapFile(fileIndex int, offset int64) (piece, start int)
	// SetPriority sets the fetch priority of a single piece.
	SetPriority(piece int, p Priority)
	// RequestRead asks the engine to deliver piece's bytes asynchronously.
	// The result arrives later as an AlertReadPiece off Alerts(). Must not
	// block the caller.
	RequestRead(piece int)
	// Alerts returns the engine's event stream. Close does not close it;
	// consumers stop reading by their own cancellation.
	Alerts() <-chan Alert
	// Close releases engine resources owned by this adapter (not
	// necessarily the underlying client — see the engine package for the
	// intentional-leak shutdown policy).
	Close()
}
