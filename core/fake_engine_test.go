package core

import "sync"

// fakeEngine is an in-memory Engine used to drive the read–piece reactor
// deterministically, without any real network or disk I/O. It models a
// single torrent with one or more files packed contiguously across
// fixed-size pieces (the last piece may be shorter).
type fakeEngine struct {
	mu sync.Mutex

	pieceSize  int
	totalSize  int64
	files      []FileInfo
	fileOffset []int64 // offset of each file within the torrent

	have     []bool
	priority []Priority
	data     [][]byte // piece payloads, set via seedPattern

	alerts chan Alert
}

func newFakeEngine(pieceSize int, files []FileInfo) *fakeEngine {
	fe := &fakeEngine{
		pieceSize: pieceSize,
		files:     files,
		alerts:    make(chan Alert, 64),
	}

	var total int64
	for _, f := range files {
		fe.fileOffset = append(fe.fileOffset, total)
		total += f.Size
	}
	fe.totalSize = total

	n := int((total + int64(pieceSize) - 1) / int64(pieceSize))
	if n == 0 {
		n = 0
	}
	fe.have = make([]bool, n)
	fe.priority = make([]Priority, n)
	fe.data = make([][]byte, n)
	for i := range fe.data {
		fe.data[i] = make([]byte, fe.pieceLen(i))
	}

	return fe
}

// seedPattern sets each byte to pos%256, where pos is the byte's offset
// in the whole torrent (counting on across piece boundaries), matching
// the single-piece scenario's [0,1,2,...,255,0,1,...] payload.
func (fe *fakeEngine) seedPattern() {
	var pos int
	for i := range fe.data {
		for j := range fe.data[i] {
			fe.data[i][j] = byte((pos) % 256)
			pos++
		}
	}
}

func (fe *fakeEngine) pieceLen(i int) int {
	if int64(i+1)*int64(fe.pieceSize) <= fe.totalSize {
		return fe.pieceSize
	}
	rem := fe.totalSize - int64(i)*int64(fe.pieceSize)
	if rem < 0 {
		return 0
	}
	return int(rem)
}

func (fe *fakeEngine) Files() []FileInfo { return fe.files }

func (fe *fakeEngine) FileSize(fileIndex int) int64 { return fe.files[fileIndex].Size }

func (fe *fakeEngine) NumPieces() int { return len(fe.have) }

func (fe *fakeEngine) PieceSize(piece int) int {
	if piece < 0 || piece >= len(fe.data) {
		return 0
	}
	return len(fe.data[piece])
}

func (fe *fakeEngine) Have(piece int) bool {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.have[piece]
}

func (fe *fakeEngine) MapFile(fileIndex int, offset int64) (int, int) {
	abs := fe.fileOffset[fileIndex] + offset
	piece := int(abs / int64(fe.pieceSize))
	start := int(abs % int64(fe.pieceSize))
	return piece, start
}

func (fe *fakeEngine) SetPriority(piece int, p Priority) {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	if piece >= 0 && piece < len(fe.priority) {
		fe.priority[piece] = p
	}
}

func (fe *fakeEngine) PriorityOf(piece int) Priority {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.priority[piece]
}

// RequestRead delivers synchronously in tests: no goroutine hop needed
// since the fake has no real I/O latency, and the caller (Read.trigger)
// never assumes asynchrony beyond "not on this call stack's lock".
func (fe *fakeEngine) RequestRead(piece int) {
	fe.mu.Lock()
	buf := append([]byte(nil), fe.data[piece]...)
	fe.mu.Unlock()
	fe.alerts <- Alert{Kind: AlertReadPiece, Piece: piece, Buffer: buf}
}

func (fe *fakeEngine) Alerts() <-chan Alert { return fe.alerts }

func (fe *fakeEngine) Close() {}

// FinishPiece simulates the engine completing and hash-verifying a
// piece: marks it present and emits piece_finished.
func (fe *fakeEngine) FinishPiece(piece int) {
	fe.mu.Lock()
	fe.have[piece] = true
	fe.mu.Unlock()
	fe.alerts <- Alert{Kind: AlertPieceFinished, Piece: piece}
}
