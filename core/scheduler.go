package core

// HeadBytes is the size of the high-priority prefetch window ahead of
// the cursor: the "hot" window in the design's terminology.
const HeadBytes = 2 * 1024 * 1024

// scheduler maintains the sliding download window: a single cursor piece
// index, steered ahead of read activity to favor sequential fetch.
// All methods assume the caller already holds the owning Core's lock.
type scheduler struct {
	cursor int
}

// jump steers the window to start at or after piece, bumping a HeadBytes
// hot window to PriorityHigh and the remainder of hintSize bytes
// (measured from piece, not from the new cursor) to PriorityLow.
func (s *scheduler) jump(eng Engine, piece int, hintSize int) {
	n := eng.NumPieces()
	if piece < 0 {
		piece = 0
	}
	if piece >= n {
		return
	}

	tail := piece
	for tail < n && eng.Have(tail) {
		tail++
	}
	if tail >= n {
		return
	}
	s.cursor = tail

	hotBytes := 0
	p := tail
	for p < n && hotBytes < HeadBytes {
		if !eng.Have(p) {
			eng.SetPriority(p, PriorityHigh)
			hotBytes += eng.PieceSize(p)
		}
		p++
	}
	hotEnd := p

	remaining := hintSize
	cp := piece
	for remaining > 0 && cp < n {
		if cp >= hotEnd && !eng.Have(cp) {
			eng.SetPriority(cp, PriorityLow)
		}
		remaining -= eng.PieceSize(cp)
		cp++
	}
}

// advance re-jumps to the current cursor with no byte hint, refilling
// the hot window as pieces complete. Called on every piece_finished event.
func (s *scheduler) advance(eng Engine) {
	s.jump(eng, s.cursor, 0)
}
