package core

// PiecePart is the unit of fetch within one Read: a byte range of a
// single piece, copied into a slice of the caller's output buffer
// exactly once.
type PiecePart struct {
	Piece  int
	Start  int
	Length int
	dest   []byte // sub-slice of the Read's output buffer; len(dest) == Length
	filled bool
}

// Read is one in-flight VFS read, decomposed into a contiguous run of
// PieceParts. It is registered with a Core for its lifetime and owns its
// part list exclusively while registered.
type Read struct {
	parts  []PiecePart
	total  int
	filled int // bytes copied in so far, across all parts
}

// NewRead builds a Read for (fileIndex, offset, size), clamping size to
// the file's actual length. buf must have length >= the clamped size;
// only the first Size() bytes of it are written.
func NewRead(eng Engine, fileIndex int, offset int64, size int, buf []byte) *Read {
	rd := &Read{}

	fileSize := eng.FileSize(fileIndex)
	if offset < 0 || offset >= fileSize {
		return rd
	}
	if remaining := fileSize - offset; int64(size) > remaining {
		size = int(remaining)
	}
	if size <= 0 {
		return rd
	}

	written := 0
	for written < size {
		piece, start := eng.MapFile(fileIndex, offset)
		length := size - written
		if max := eng.PieceSize(piece) - start; length > max {
			length = max
		}
		if length <= 0 {
			break
		}

		rd.parts = append(rd.parts, PiecePart{
			Piece:  piece,
			Start:  start,
			Length: length,
			dest:   buf[written : written+length],
		})

		offset += int64(length)
		written += length
	}

	rd.total = written
	return rd
}

// Size returns the aggregate requested byte count: the value ultimately
// returned to the VFS caller.
func (rd *Read) Size() int {
	return rd.total
}

// Finished reports whether every part has been filled.
func (rd *Read) Finished() bool {
	for i := range rd.parts {
		if !rd.parts[i].filled {
			return false
		}
	}
	return true
}

// FilledBytes returns the number of bytes actually copied into the
// output buffer so far: the sum of Length over parts with filled==true.
// Used when a Read is abandoned before Finished(), so the caller gets
// back only the bytes that genuinely landed rather than the full
// requested size.
func (rd *Read) FilledBytes() int {
	return rd.filled
}

// firstPiece returns the piece index of the Read's first part, used to
// seed the scheduler's jump. Only valid when len(parts) > 0.
func (rd *Read) firstPiece() int {
	return rd.parts[0].Piece
}

// trigger asks the engine to deliver any not-yet-filled part whose piece
// the engine already has. Idempotent: requesting the same piece twice is
// harmless, since copy() is guarded by filled.
func (rd *Read) trigger(eng Engine) {
	requested := make(map[int]bool)
	for i := range rd.parts {
		p := &rd.parts[i]
		if p.filled || requested[p.Piece] {
			continue
		}
		if eng.Have(p.Piece) {
			eng.RequestRead(p.Piece)
			requested[p.Piece] = true
		}
	}
}

// copy fills every not-yet-filled part covered by piece from buf, which
// must hold exactly that piece's bytes.
func (rd *Read) copy(piece int, buf []byte) {
	for i := range rd.parts {
		p := &rd.parts[i]
		if p.filled || p.Piece != piece {
			continue
		}
		copy(p.dest, buf[p.Start:p.Start+p.Length])
		p.filled = true
		rd.filled += p.Length
	}
}
