package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func startPump(t *testing.T, c *Core) context.CancelFunc {
	ctx, cancel := context.WithCancel(context.Background())
	go c.RunAlertPump(ctx)
	t.Cleanup(cancel)
	return cancel
}

// Scenario 1: single-piece read.
func TestSinglePieceRead(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	fe := newFakeEngine(65536, []FileInfo{{Path: "/f", Size: 65536, Index: 0}})
	fe.seedPattern()
	c := New(fe)
	startPump(t, c)

	done := make(chan int, 1)
	go func() {
		buf := make([]byte, 65536)
		n := c.Read(0, 0, 65536, buf)
		done <- n
		for i := 0; i < 65536; i++ {
			require.Equal(byte(i%256), buf[i])
		}
	}()

	// Give the reactor a moment to issue trigger(); then complete the piece.
	time.Sleep(10 * time.Millisecond)
	fe.FinishPiece(0)

	select {
	case n := <-done:
		require.Equal(65536, n)
	case <-time.After(2 * time.Second):
		t.Fatal("read did not complete")
	}
}

// Scenario 2: cross-piece read, delivered out of order.
func TestCrossPieceReadReverseDelivery(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	fe := newFakeEngine(16*1024, []FileInfo{{Path: "/f", Size: 48 * 1024, Index: 0}})
	fe.seedPattern()
	c := New(fe)
	startPump(t, c)

	done := make(chan int, 1)
	var buf []byte
	go func() {
		buf = make([]byte, 24*1024)
		n := c.Read(0, 8*1024, 24*1024, buf)
		done <- n
	}()

	time.Sleep(10 * time.Millisecond)
	// Deliver piece 1 first, then piece 0 — order must not matter.
	fe.FinishPiece(1)
	time.Sleep(10 * time.Millisecond)
	fe.FinishPiece(0)

	select {
	case n := <-done:
		require.Equal(24*1024, n)
		want := fe.data[0][8*1024:]
		want = append(append([]byte{}, want...), fe.data[1]...)
		require.Equal(want, buf)
	case <-time.After(2 * time.Second):
		t.Fatal("read did not complete")
	}
}

// Scenario 4: tail truncation.
func TestTailTruncation(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	fe := newFakeEngine(1000, []FileInfo{{Path: "/f", Size: 1000, Index: 0}})
	fe.seedPattern()
	c := New(fe)
	startPump(t, c)

	done := make(chan int, 1)
	buf := make([]byte, 500)
	go func() {
		done <- c.Read(0, 900, 500, buf)
	}()

	time.Sleep(5 * time.Millisecond)
	fe.FinishPiece(0)

	n := <-done
	require.Equal(100, n)
	require.Equal(fe.data[0][900:1000], buf[:100])
}

// Zero-length read completes immediately without waiting on anything.
func TestZeroLengthRead(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	fe := newFakeEngine(1000, []FileInfo{{Path: "/f", Size: 1000, Index: 0}})
	c := New(fe)
	startPump(t, c)

	buf := make([]byte, 10)
	n := c.Read(0, 1000, 10, buf)
	require.Equal(0, n)
}

// An AlertMetadataReady off the engine's alert stream — the production
// torrent_added/metadata_received path — builds the directory index and
// unblocks VFS operations that were waiting on it, without Core ever
// needing its SetIndex called directly by the caller.
func TestMetadataReadyAlertBuildsIndexAndUnblocksVFSOps(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	fe := newFakeEngine(1024, []FileInfo{{Path: "/movie.mkv", Size: 4096, Index: 0}})
	c := New(fe)
	startPump(t, c)

	done := make(chan error, 1)
	go func() {
		_, _, err := c.Getattr("/movie.mkv")
		done <- err
	}()

	select {
	case <-done:
		t.Fatal("Getattr returned before metadata was ready")
	case <-time.After(20 * time.Millisecond):
	}

	fe.alerts <- Alert{Kind: AlertMetadataReady}

	select {
	case err := <-done:
		require.NoError(err)
	case <-time.After(2 * time.Second):
		t.Fatal("Getattr did not unblock after metadata became ready")
	}

	children, err := c.Readdir("/")
	require.NoError(err)
	require.Equal([]string{"movie.mkv"}, children)
}

// Teardown draining: Close()ing a Core with a pending, partially-filled
// Read must wake it with the bytes that had actually landed, not the
// full nominal request size.
func TestCloseDrainsPendingReadWithPartialBytes(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	fe := newFakeEngine(16*1024, []FileInfo{{Path: "/f", Size: 32 * 1024, Index: 0}})
	fe.seedPattern()
	c := New(fe)
	startPump(t, c)

	done := make(chan int, 1)
	buf := make([]byte, 32*1024)
	go func() {
		done <- c.Read(0, 0, 32*1024, buf)
	}()

	// Only the first piece ever lands; the second never does.
	time.Sleep(10 * time.Millisecond)
	fe.FinishPiece(0)
	time.Sleep(10 * time.Millisecond)

	c.Close()

	select {
	case n := <-done:
		require.Equal(16*1024, n)
		require.Equal(fe.data[0], buf[:16*1024])
	case <-time.After(2 * time.Second):
		t.Fatal("read did not unblock on Close")
	}
}

// Scenario 3: seek re-steer — cursor lands at the first not-yet-present
// piece at or after the jump target, with a hot window ahead of it.
func TestSeekReSteer(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	pieceSize := 64 * 1024
	fe := newFakeEngine(pieceSize, []FileInfo{{Path: "/f", Size: int64(pieceSize * 100), Index: 0}})
	c := New(fe)
	startPump(t, c)

	for i := 0; i < 11; i++ {
		fe.have[i] = true
	}

	done := make(chan int, 1)
	buf := make([]byte, pieceSize)
	go func() {
		done <- c.Read(0, int64(50*pieceSize), pieceSize, buf)
	}()

	time.Sleep(5 * time.Millisecond)
	fe.FinishPiece(50)

	<-done
	// Piece 50 is now present, so the cursor has slid to the first
	// not-yet-present piece at or after the jump target.
	require.Equal(51, c.Cursor())
	require.Equal(PriorityHigh, fe.PriorityOf(51))
}
