package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cat2151/ym2151play/internal/config"
	"github.com/cat2151/ym2151play/internal/ipc"
)

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Send one command to a running ym2151play server",
}

func init() {
	clientCmd.PersistentFlags().StringP("socket", "s", "", "Unix domain socket path (overrides config)")
	cobra.CheckErr(viper.BindPFlag("socket_path", clientCmd.PersistentFlags().Lookup("socket")))

	clientCmd.AddCommand(
		newFileCommand("play-json", ipc.CommandPlayJson),
		newFileCommand("play-json-interactive", ipc.CommandPlayJsonInInteractive),
		newBareCommand("stop", ipc.CommandStop),
		newBareCommand("start-interactive", ipc.CommandStartInteractive),
		newBareCommand("stop-interactive", ipc.CommandStopInteractive),
		newBareCommand("clear-schedule", ipc.CommandClearSchedule),
		newBareCommand("server-time", ipc.CommandGetServerTime),
		newBareCommand("interactive-state", ipc.CommandGetInteractiveModeState),
		newBareCommand("shutdown", ipc.CommandShutdown),
	)

	rootCmd.AddCommand(clientCmd)
}

// newFileCommand builds a client subcommand that reads an event-log JSON
// file and sends it as the request's Data payload.
func newFileCommand(use string, command ipc.CommandName) *cobra.Command {
	return &cobra.Command{
		Use:   use + " FILE",
		Short: fmt.Sprintf("send %s with the given event-log file", command),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return usageError(fmt.Errorf("read event log: %w", err))
			}
			var probe json.RawMessage
			if err := json.Unmarshal(data, &probe); err != nil {
				return usageError(fmt.Errorf("event log is not valid JSON: %w", err))
			}
			return sendAndPrint(ipc.Request{Command: command, Data: probe})
		},
	}
}

// newBareCommand builds a client subcommand that sends a command with no
// request payload.
func newBareCommand(use string, command ipc.CommandName) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: fmt.Sprintf("send %s", command),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendAndPrint(ipc.Request{Command: command})
		},
	}
}

// sendAndPrint dials the server, sends req, and prints the response as
// JSON. IPC-layer failures (dial, frame, decode) are reported distinctly
// from an {"status":"error"} application response, which is printed and
// treated as success at the process level: the server answered.
func sendAndPrint(req ipc.Request) error {
	settings, err := config.Get()
	if err != nil {
		return usageError(fmt.Errorf("load config: %w", err))
	}

	resp, err := ipc.SendRequest(settings.SocketPath, req)
	if err != nil {
		return ipcError(err)
	}

	encoded, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}

// exitCodeError carries the process exit code a CLI error should produce:
// 1 for usage errors, 2 for IPC failures, matching ym2151play's documented
// client exit codes.
type exitCodeError struct {
	code int
	err  error
}

func (e *exitCodeError) Error() string { return e.err.Error() }
func (e *exitCodeError) Unwrap() error { return e.err }

func usageError(err error) error { return &exitCodeError{code: 1, err: err} }
func ipcError(err error) error   { return &exitCodeError{code: 2, err: err} }
