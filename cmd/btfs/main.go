// Command btfs mounts a single BitTorrent swarm as a read-only FUSE
// filesystem: files appear immediately, byte ranges are fetched from
// peers only as they're read.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-colorable"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/AlexanderBugara/btfs/config"
	"github.com/AlexanderBugara/btfs/core"
	"github.com/AlexanderBugara/btfs/engine"
	"github.com/AlexanderBugara/btfs/fuse"
	"github.com/AlexanderBugara/btfs/savepath"
	"github.com/AlexanderBugara/btfs/status"
)

func main() {
	app := &cli.App{
		Name:      "btfs",
		Usage:     "mount a torrent as a read-only FUSE filesystem",
		ArgsUsage: "<metadata> <mountpoint>",
		Flags:     config.Flags(),
		Action:    run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "btfs:", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	if ec, ok := err.(cli.ExitCoder); ok {
		return ec.ExitCode()
	}
	return 1
}

func run(c *cli.Context) error {
	if c.String("config") == "" {
		if p := config.DefaultConfigPath(); p != "" {
			if _, err := os.Stat(p); err == nil {
				c.Set("config", p)
			}
		}
	}

	cfg, err := config.FromContext(c)
	if err != nil {
		return err
	}

	setupLogging(cfg.LogLevel, cfg.LogFile)

	dir, err := savepath.Create()
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	log.Info().Str("path", dir).Msg("save path ready")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess, err := engine.Open(ctx, engine.Config{
		SavePath:     dir,
		ListenLow:    cfg.ListenLow,
		ListenHigh:   cfg.ListenHigh,
		DownloadRate: cfg.DownloadRate,
		UploadRate:   cfg.UploadRate,
		ProxyURL:     cfg.ProxyURL,
	}, cfg.Metadata)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	cr := core.New(sess)
	go cr.RunAlertPump(ctx)

	st := status.New(cfg.StatusAddr, cr, sess)
	go func() {
		if err := st.Run(ctx); err != nil {
			log.Warn().Err(err).Msg("status server stopped")
		}
	}()

	handler := fuse.NewHandler(cr, cfg.Mountpoint, cfg.AllowOther)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("signal received, unmounting")
		handler.Unmount()
	}()

	if err := handler.Mount(); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	return nil
}

func setupLogging(level, file string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	console := zerolog.ConsoleWriter{Out: colorable.NewColorableStderr()}

	var writer io.Writer = console
	if file != "" {
		rotator := &lumberjack.Logger{
			Filename:   file,
			MaxSize:    50,
			MaxBackups: 3,
			MaxAge:     28,
		}
		writer = zerolog.MultiLevelWriter(console, rotator)
	}

	log.Logger = zerolog.New(writer).With().Timestamp().Logger()
}
