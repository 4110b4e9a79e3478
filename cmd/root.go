// cmd/root.go
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cat2151/ym2151play/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "ym2151play",
	Short: "Interactive YM2151 FM-synthesis playback server and client",
	Long: `ym2151play drives a YM2151 chip emulator and streams the result to an
audio device in real time, accepting register-write schedules and live
commands from cooperating client processes over a local Unix domain socket.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var exitErr *exitCodeError
		if errors.As(err, &exitErr) {
			_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", exitErr.err)
			os.Exit(exitErr.code)
		}
		_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	if err := config.Init(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
}
