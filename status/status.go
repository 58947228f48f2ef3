// Package status exposes a small loopback-only diagnostics endpoint
// over the mount's Core: progress, the scheduler's cursor, and the
// piece count. It is not part of the metadata-fetch path (design's
// Non-goals exclude fetching torrent data over HTTP/HTTPS) — this is a
// read-only view of local state, served to localhost only.
package status

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/AlexanderBugara/btfs/core"
)

// Report mirrors what an operator watching a stuck mount wants to see.
type Report struct {
	Files      []FileReport `json:"files"`
	NumPieces  int          `json:"num_pieces"`
	HavePieces int          `json:"have_pieces"`
	Cursor     int          `json:"cursor"`
}

type FileReport struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
}

type Server struct {
	addr   string
	core   *core.Core
	eng    core.Engine
	log    zerolog.Logger
	server *http.Server
}

func New(addr string, c *core.Core, eng core.Engine) *Server {
	gin.SetMode(gin.ReleaseMode)
	return &Server{
		addr: addr,
		core: c,
		eng:  eng,
		log:  log.Logger.With().Str("component", "status").Logger(),
	}
}

// Run starts the HTTP server on s.addr and blocks until ctx is
// cancelled, then shuts it down. A no-op if addr is empty; an error if
// addr is not a loopback address.
func (s *Server) Run(ctx context.Context) error {
	if s.addr == "" {
		return nil
	}
	host, _, err := net.SplitHostPort(s.addr)
	if err != nil {
		return err
	}
	if ip := net.ParseIP(host); host != "localhost" && (ip == nil || !ip.IsLoopback()) {
		return fmt.Errorf("status: %s is not a loopback address", s.addr)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/status", s.handleStatus)

	s.server = &http.Server{Addr: s.addr, Handler: r}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.addr).Msg("status endpoint listening")
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (s *Server) handleStatus(c *gin.Context) {
	files := s.eng.Files()
	report := Report{
		NumPieces: s.eng.NumPieces(),
		Cursor:    s.core.Cursor(),
	}
	for _, f := range files {
		report.Files = append(report.Files, FileReport{Path: f.Path, Size: f.Size})
	}
	for i := 0; i < report.NumPieces; i++ {
		if s.eng.Have(i) {
			report.HavePieces++
		}
	}
	c.JSON(http.StatusOK, report)
}
