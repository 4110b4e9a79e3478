package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cat2151/ym2151play/internal/chip"
	"github.com/cat2151/ym2151play/internal/chip/opm"
	"github.com/cat2151/ym2151play/internal/config"
	"github.com/cat2151/ym2151play/internal/dispatcher"
	"github.com/cat2151/ym2151play/internal/logging"
	"github.com/cat2151/ym2151play/internal/session"
	"github.com/cat2151/ym2151play/internal/sink"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the ym2151play playback server",
	Long:  `Starts a SessionController and CommandDispatcher, listening on a Unix domain socket until shutdown.`,
	RunE:  runServer,
}

func init() {
	serverCmd.Flags().StringP("socket", "s", "", "Unix domain socket path (overrides config)")
	serverCmd.Flags().IntP("sink-rate", "r", 0, "sink sample rate in Hz (overrides config)")
	serverCmd.Flags().BoolP("debug", "D", false, "enable debug logging")

	cobra.CheckErr(viper.BindPFlag("socket_path", serverCmd.Flags().Lookup("socket")))
	cobra.CheckErr(viper.BindPFlag("sink_sample_rate", serverCmd.Flags().Lookup("sink-rate")))
	cobra.CheckErr(viper.BindPFlag("debug", serverCmd.Flags().Lookup("debug")))

	rootCmd.AddCommand(serverCmd)
}

// shutdownPollInterval is how often the dispatcher is polled for a
// shutdown command received over the socket.
const shutdownPollInterval = 50 * time.Millisecond

// runServer wires the chip backend, audio sink, session controller and
// command dispatcher together, then blocks until shutdown or a signal.
func runServer(_ *cobra.Command, _ []string) error {
	settings, err := config.Get()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logging.SetVerbose(settings.Debug)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logging.Always("received signal, shutting down", "signal", sig)
		cancel()
	}()

	playback := sink.New(sink.Config{
		DeviceIndex: settings.DeviceIndex,
		SampleRate:  uint32(settings.SinkSampleRate),
		Channels:    uint32(settings.Channels),
		BufferSize:  uint32(settings.BufferSize),
	})
	if err := playback.Init(); err != nil {
		return fmt.Errorf("init audio sink: %w", err)
	}
	defer func() {
		if err := playback.Close(); err != nil {
			logging.Warn("error closing audio sink", "err", err)
		}
	}()

	if settings.Debug {
		if devices, err := playback.ListDevices(); err != nil {
			logging.Warn("could not list audio devices", "err", err)
		} else {
			for i, dev := range devices {
				logging.Verbose("available audio device", "index", i, "name", dev.Name())
			}
		}
	}

	controller := session.New(func() chip.Emulator { return opm.New() }, uint32(settings.SinkSampleRate))
	playback.SetFillFunc(controller.Bridge().Fill)

	if err := playback.Start(ctx); err != nil {
		return fmt.Errorf("start audio sink: %w", err)
	}

	d := dispatcher.New(controller)
	serveErrCh := make(chan error, 1)
	go func() { serveErrCh <- d.Run(settings.SocketPath) }()

	go func() {
		ticker := time.NewTicker(shutdownPollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if d.ShutdownRequested() {
					logging.Always("shutdown command received")
					cancel()
					return
				}
			}
		}
	}()

	logging.Always("ym2151play server listening", "socket", settings.SocketPath)

	<-ctx.Done()

	if err := d.Close(); err != nil {
		logging.Warn("error closing dispatcher listener", "err", err)
	}
	if err := <-serveErrCh; err != nil {
		logging.Warn("dispatcher accept loop exited with error", "err", err)
	}

	logging.Always("ym2151play server stopped")
	return nil
}
