// =============================================================================
// repl.go - Controller Console
// =============================================================================
//
// The drive subcommand starts an engine executable as a child process and
// lets the user type commands to it. Lines starting with '.' are console
// commands; everything else is sent to the engine as a protocol command.
//
// =============================================================================

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gtpkit/gtpengine/gtpengine"
)

// replPrompt is shown in interactive mode only.
const replPrompt = "gtp> "

// consoleHelp maps console commands to their help text.
var consoleHelp = map[string]string{
	"help": `.help [command]
  Show the console commands, or help for one of them.`,
	"interrupt": `.interrupt
  Send the interrupt directive. The engine must have been started with
  --interrupt for the directive to stop a running command.`,
	"list": `.list
  List the commands the engine knows.`,
	"quit": `.quit
  Send quit to the engine and leave the console.`,
}

func newDriveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drive <engine> [engine args...]",
		Short: "Start an engine executable and send it commands",
		Long: `drive starts an engine executable with piped standard input and output and
reads commands from the terminal. Responses are printed to standard output
and failures to standard error. Type .help for the console commands.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runDrive,
	}
	// Flags after the engine path belong to the engine.
	cmd.Flags().SetInterspersed(false)
	return cmd
}

func runDrive(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	engine, err := gtpengine.StartProcess(ctx, zap.NewNop(), args[0], args[1:]...)
	if err != nil {
		return err
	}

	var in gtpengine.LineReader
	if cmd.InOrStdin() == os.Stdin {
		editor := NewLineEditor(os.Stdin)
		defer editor.Close()
		if editor.IsInteractive() {
			editor.SetPrompt(replPrompt)
		}
		in = editor
	} else {
		in = gtpengine.NewLineScanner(cmd.InOrStdin())
	}

	replErr := runREPL(ctx, engine.Client, in, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if err := engine.Quit(); err != nil && replErr == nil {
		replErr = err
	}
	return replErr
}

// runREPL sends the lines read from in to the engine until the input ends,
// .quit is entered or the connection fails.
func runREPL(ctx context.Context, client *gtpengine.Client, in gtpengine.LineReader, out, errOut io.Writer) error {
	for {
		line, err := in.ReadLine()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if !gtpengine.IsCommandLine(line) {
			continue
		}

		if strings.HasPrefix(line, ".") {
			quit, err := consoleCommand(ctx, client, line, out, errOut)
			if err != nil {
				return err
			}
			if quit {
				return nil
			}
			continue
		}

		if err := sendAndPrint(ctx, client, line, out, errOut); err != nil {
			return err
		}
	}
}

// consoleCommand runs a dot-command. It returns true if the console should
// exit.
func consoleCommand(ctx context.Context, client *gtpengine.Client, line string, out, errOut io.Writer) (bool, error) {
	fields := strings.Fields(line[1:])
	if len(fields) == 0 {
		printConsoleHelp(out, errOut, "")
		return false, nil
	}

	switch fields[0] {
	case "quit":
		return true, nil
	case "interrupt":
		return false, client.Interrupt()
	case "list":
		return false, sendAndPrint(ctx, client, "list_commands", out, errOut)
	case "help":
		topic := ""
		if len(fields) > 1 {
			topic = fields[1]
		}
		printConsoleHelp(out, errOut, topic)
		return false, nil
	default:
		fmt.Fprintf(errOut, "Error: Unknown console command '.%s'. Type .help to see available commands.\n", fields[0])
		return false, nil
	}
}

// sendAndPrint sends one command. A failure response is printed; only a
// broken connection is returned as an error.
func sendAndPrint(ctx context.Context, client *gtpengine.Client, line string, out, errOut io.Writer) error {
	resp, err := client.Send(ctx, line)
	if err != nil {
		var connErr *gtpengine.ConnectionError
		if errors.As(err, &connErr) || errors.Is(err, gtpengine.ErrNotConnected) {
			return err
		}
		fmt.Fprintf(errOut, "Error: %v\n", err)
		return nil
	}

	if !resp.IsOK() {
		fmt.Fprintf(errOut, "Error: %s\n", resp.Text)
		return nil
	}
	if text := strings.TrimRight(resp.Text, "\n"); text != "" {
		fmt.Fprintln(out, text)
	}
	return nil
}

func printConsoleHelp(out, errOut io.Writer, topic string) {
	if topic == "" {
		fmt.Fprint(out, `Console Commands:
  .help [command]   Show help
  .interrupt        Interrupt the running command
  .list             List engine commands
  .quit             Quit the engine and exit

Any other line is sent to the engine.
`)
		return
	}

	key := strings.TrimPrefix(strings.ToLower(topic), ".")
	if text, ok := consoleHelp[key]; ok {
		fmt.Fprintln(out, text)
		return
	}
	fmt.Fprintf(errOut, "Error: No help for '%s'. Type .help to see available commands.\n", topic)
}
