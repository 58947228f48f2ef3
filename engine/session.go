// Package engine adapts github.com/anacrolix/torrent into the
// core.Engine interface. It is the only package that knows about
// anacrolix's Client/Torrent/Piece types; everything above it (core,
// fuse, cmd/btfs) talks to a Session only through core.Engine.
package engine

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	tlog "github.com/anacrolix/log"
	"github.com/anacrolix/torrent"
	"github.com/anacrolix/torrent/metainfo"
	"github.com/anacrolix/torrent/types"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/AlexanderBugara/btfs/core"
	"github.com/AlexanderBugara/btfs/internal/dlog"
)

// Config holds the session's dial-out and storage policy. Zero values
// mean "unlimited"/"default".
type Config struct {
	SavePath     string
	ListenLow    int // first port to try, inclusive
	ListenHigh   int // last port to try, inclusive
	DownloadRate float64 // bytes/sec, 0 = unlimited
	UploadRate   float64 // bytes/sec, 0 = unlimited
	ProxyURL     string  // optional http(s) proxy for tracker announces
}

// Session is the C5 façade: one torrent.Client, one torrent.Torrent,
// adapted to core.Engine. A Session is built for exactly one mount.
type Session struct {
	cl *torrent.Client
	t  *torrent.Torrent

	pieceLength int64
	numPieces   int
	totalLength int64

	files      []core.FileInfo
	fileOffset []int64

	mu   sync.Mutex
	have []bool

	readerMu sync.Mutex
	reader   torrent.Reader

	alerts chan core.Alert

	cancel context.CancelFunc
	log    zerolog.Logger
}

var _ core.Engine = (*Session)(nil)

// Open builds a torrent.Client from cfg and enqueues the given magnet
// URI or .torrent file path, returning as soon as the torrent is added.
// Metadata (the piece count, piece length, and file list) is fetched
// asynchronously — Open does not wait for it. The directory index
// becomes available once an AlertMetadataReady alert is delivered off
// Alerts(); until then, VFS operations that depend on it simply block,
// per the design's "metadata fetch still pending" disposition. There is
// no timeout: a magnet link with a slow swarm keeps trying rather than
// failing the mount outright.
func Open(ctx context.Context, cfg Config, source string) (*Session, error) {
	l := log.Logger.With().Str("component", "engine").Logger()

	torrentCfg := torrent.NewDefaultClientConfig()
	torrentCfg.DataDir = cfg.SavePath
	torrentCfg.Seed = true
	torrentCfg.DisableIPv6 = true

	if cfg.DownloadRate > 0 {
		torrentCfg.DownloadRateLimiter = rate.NewLimiter(rate.Limit(cfg.DownloadRate), int(cfg.DownloadRate))
	}
	if cfg.UploadRate > 0 {
		torrentCfg.UploadRateLimiter = rate.NewLimiter(rate.Limit(cfg.UploadRate), int(cfg.UploadRate))
	}

	if cfg.ProxyURL != "" {
		u, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("engine: bad proxy url: %w", err)
		}
		// Only tracker HTTP(S) announces go through this; peer wire
		// connections are unaffected.
		torrentCfg.HTTPProxy = http.ProxyURL(u)
	}

	tl := tlog.NewLogger()
	tl.SetHandlers(&dlog.Anacrolix{L: l})
	torrentCfg.Logger = tl

	low, high := cfg.ListenLow, cfg.ListenHigh
	if low == 0 {
		low, high = 6881, 6889
	}

	var cl *torrent.Client
	var err error
	for port := low; port <= high; port++ {
		torrentCfg.ListenPort = port
		cl, err = torrent.NewClient(torrentCfg)
		if err == nil {
			l.Info().Int("port", port).Msg("listening")
			break
		}
		l.Debug().Int("port", port).Err(err).Msg("port unavailable, trying next")
	}
	if cl == nil {
		return nil, fmt.Errorf("engine: no listen port available in [%d,%d]: %w", low, high, err)
	}

	t, err := addTorrent(cl, source)
	if err != nil {
		cl.Close()
		return nil, err
	}

	mctx, cancel := context.WithCancel(ctx)
	s := &Session{
		cl:     cl,
		t:      t,
		alerts: make(chan core.Alert, 256),
		cancel: cancel,
		log:    l,
	}

	go s.waitMetadata(mctx)

	return s, nil
}

func addTorrent(cl *torrent.Client, source string) (*torrent.Torrent, error) {
	if spec, err := metainfo.ParseMagnetUri(source); err == nil && spec.InfoHash != (metainfo.Hash{}) {
		return cl.AddMagnet(source)
	}
	return cl.AddTorrentFromFile(source)
}

// waitMetadata corresponds to the design's torrent_added/metadata_received
// handling: it waits for t.GotInfo() with no timeout (metadata_failed is
// ignored elsewhere — the engine keeps retrying on its own), snapshots
// the file list and piece layout, starts the piece-state-change pump,
// then delivers AlertMetadataReady so Core can build the directory
// index. Returns early, without delivering anything, if ctx is
// cancelled first (mount torn down before metadata ever arrived).
func (s *Session) waitMetadata(ctx context.Context) {
	select {
	case <-s.t.GotInfo():
	case <-ctx.Done():
		return
	}

	info := s.t.Info()
	numPieces := s.t.NumPieces()

	s.mu.Lock()
	s.pieceLength = info.PieceLength
	s.numPieces = numPieces
	s.totalLength = info.TotalLength()
	s.have = make([]bool, numPieces)

	var off int64
	for _, f := range s.t.Files() {
		// Nothing downloads until a read asks for it: the scheduler is the
		// only thing that raises a piece's priority above none.
		f.SetPriority(types.PiecePriorityNone)

		s.files = append(s.files, core.FileInfo{
			Path:  f.Path(),
			Size:  f.Length(),
			Index: len(s.files),
		})
		s.fileOffset = append(s.fileOffset, off)
		off += f.Length()
	}

	for i := 0; i < numPieces; i++ {
		s.have[i] = s.t.Piece(i).State().Complete
	}
	s.mu.Unlock()

	s.log.Info().Str("name", info.Name).Int("pieces", numPieces).Int64("length", s.totalLength).Msg("torrent metadata ready")

	go s.pumpPieceStateChanges(ctx)

	s.alerts <- core.Alert{Kind: core.AlertMetadataReady}
}

func (s *Session) pumpPieceStateChanges(ctx context.Context) {
	sub := s.t.SubscribePieceStateChanges()
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-sub.Values:
			if !ok {
				return
			}
			psc, ok := v.(torrent.PieceStateChange)
			if !ok {
				continue
			}
			if !psc.Complete {
				continue
			}
			s.mu.Lock()
			already := s.have[psc.Index]
			s.have[psc.Index] = true
			s.mu.Unlock()
			if already {
				continue
			}
			s.alerts <- core.Alert{Kind: core.AlertPieceFinished, Piece: psc.Index}
		}
	}
}

// Files, FileSize, NumPieces, PieceSize and MapFile are only meaningful
// once AlertMetadataReady has been delivered (Core gates every caller
// on that via waitForIndex); they still take s.mu because the status
// endpoint may poll the engine before metadata has arrived, while
// waitMetadata is concurrently populating these same fields.
func (s *Session) Files() []core.FileInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.files
}

func (s *Session) FileSize(fileIndex int) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.files[fileIndex].Size
}

func (s *Session) NumPieces() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.numPieces
}

func (s *Session) PieceSize(piece int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if piece < 0 || piece >= s.numPieces {
		return 0
	}
	if int64(piece+1)*s.pieceLength <= s.totalLength {
		return int(s.pieceLength)
	}
	rem := s.totalLength - int64(piece)*s.pieceLength
	if rem < 0 {
		return 0
	}
	return int(rem)
}

func (s *Session) Have(piece int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if piece < 0 || piece >= len(s.have) {
		return false
	}
	return s.have[piece]
}

func (s *Session) MapFile(fileIndex int, offset int64) (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	abs := s.fileOffset[fileIndex] + offset
	piece := int(abs / s.pieceLength)
	start := int(abs % s.pieceLength)
	return piece, start
}

func (s *Session) SetPriority(piece int, p core.Priority) {
	s.mu.Lock()
	n := s.numPieces
	s.mu.Unlock()
	if piece < 0 || piece >= n {
		return
	}
	var tp types.PiecePriority
	switch p {
	case core.PriorityHigh:
		tp = types.PiecePriorityNow
	case core.PriorityLow:
		tp = types.PiecePriorityNormal
	default:
		tp = types.PiecePriorityNone
	}
	s.t.Piece(piece).SetPriority(tp)
}

// RequestRead fetches piece's bytes off a dedicated goroutine and
// delivers them as an AlertReadPiece; it never blocks the caller, which
// the Reactor's locked trigger() path depends on.
func (s *Session) RequestRead(piece int) {
	go func() {
		buf := make([]byte, s.PieceSize(piece))
		if len(buf) == 0 {
			return
		}
		off := int64(piece) * s.pieceLength

		s.readerMu.Lock()
		if s.reader == nil {
			s.reader = s.t.NewReader()
			s.reader.SetResponsive()
		}
		if _, err := s.reader.Seek(off, io.SeekStart); err != nil {
			s.readerMu.Unlock()
			s.log.Warn().Err(err).Int("piece", piece).Msg("seek failed")
			return
		}
		_, err := io.ReadFull(s.reader, buf)
		s.readerMu.Unlock()
		if err != nil {
			s.log.Warn().Err(err).Int("piece", piece).Msg("read failed")
			return
		}

		s.alerts <- core.Alert{Kind: core.AlertReadPiece, Piece: piece, Buffer: buf}
	}()
}

func (s *Session) Alerts() <-chan core.Alert { return s.alerts }

// Close tears down the piece-state-change pump but deliberately does
// not close the torrent.Client: the mount's FUSE layer can return from
// Destroy() well before in-flight peer I/O unwinds, and there is no
// second mount coming to reuse the client's resources within this
// process's lifetime, so the cleanest shutdown is to let the process
// exit reclaim it.
func (s *Session) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}
