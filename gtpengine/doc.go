// Package gtpengine implements a line-oriented, synchronous command/response
// protocol engine in the style of the Go Text Protocol.
//
// # Protocol Overview
//
// A controller sends one command per line and waits for the response before
// sending the next one. A command may start with a numeric id, which is
// echoed in the response.
//
//	Request:           [id] <verb> [arguments...]\n
//	Success response:  =[id] <text>\n\n
//	Failure response:  ?[id] <text>\n\n
//
// Blank lines and lines starting with '#' are ignored. A response is
// terminated by a blank line, so empty lines inside a multi-line response
// are sent as lines holding a single space.
//
// Example session:
//
//	CTL: 1 protocol_version
//	ENG: =1 2
//	ENG:
//	CTL: frobnicate
//	ENG: ? unknown command: frobnicate
//	ENG:
//
// # Engine
//
// Create an engine, register handlers and run the main loop:
//
//	engine := gtpengine.NewEngine(gtpengine.Config{Name: "demo", Logger: logger})
//	engine.RegisterFunc("echo", func(cmd *gtpengine.Command) error {
//	    cmd.WriteString(cmd.ArgLine())
//	    return nil
//	})
//	err := engine.MainLoop(gtpengine.NewLineScanner(os.Stdin), bufio.NewWriter(os.Stdout))
//
// Handlers report failures by returning an error, usually one created with
// Failuref or returned by the argument accessors of Command.
//
// # Pondering and Interrupts
//
// SetPonderer lets the engine do speculative work while it waits for the
// next command. Pondering is always stopped, and acknowledged, before the
// next command is handled.
//
// SetInterrupter moves line reading to a separate goroutine, so that the
// "# interrupt" directive reaches the Interrupter while a command is still
// running. The "# gtpengine-sleep N" directive pauses reading for N seconds.
//
// # Embedding
//
// ExecuteCommand runs a single line without framing, hooks or goroutines.
// Host wraps it for embedding programs that refer to engines by handle.
//
// # Controllers
//
// Client and StartProcess drive an engine from the other side of the
// protocol, for example in integration tests.
package gtpengine
