//go:build !fuse

package fuse

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/AlexanderBugara/btfs/core"
)

// Handler is a stub used when the module is built without -tags=fuse
// (e.g. on a machine without libfuse headers for cgo). It mirrors the
// real Handler's surface so cmd/btfs doesn't need a build-tag switch of
// its own.
type Handler struct {
	mountpoint string
}

func NewHandler(c *core.Core, mountpoint string, allowOther bool) *Handler {
	return &Handler{mountpoint: mountpoint}
}

func (h *Handler) Mount() error {
	log.Warn().Str("mountpoint", h.mountpoint).Msg("built without FUSE support; rebuild with -tags=fuse")
	return fmt.Errorf("fuse: not compiled in, rebuild with -tags=fuse")
}

func (h *Handler) Unmount() {}
