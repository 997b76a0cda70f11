package gtpengine

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Hooks are called around every command handled by HandleCommand.
type Hooks interface {
	// BeforeHandleCommand is called before the handler is looked up.
	BeforeHandleCommand()
	// BeforeWritingResponse is called after the handler returned and
	// before the response is written.
	BeforeWritingResponse()
}

// Config holds the identity and logger of an engine.
type Config struct {
	// Name is the answer to the name command. Defaults to "Unknown".
	Name string

	// Version is the answer to the version command. Empty by default.
	Version string

	// ProtocolVersion is the answer to protocol_version.
	// Defaults to DefaultProtocolVersion.
	ProtocolVersion string

	// Logger receives debug output. Nil means no output.
	Logger *zap.Logger
}

// Engine reads commands, dispatches them to registered handlers and writes
// the responses.
//
// Handlers are never run concurrently. The optional ponder and read
// goroutines started by MainLoop only call the Ponderer and Interrupter.
type Engine struct {
	cfg      Config
	logger   *zap.Logger
	registry *Registry

	mu          sync.Mutex
	hooks       Hooks
	ponderer    Ponderer
	interrupter Interrupter

	quit atomic.Bool
}

// NewEngine creates an engine with the built-in commands known_command,
// list_commands, name, protocol_version, quit and version registered.
func NewEngine(cfg Config) *Engine {
	if cfg.Name == "" {
		cfg.Name = "Unknown"
	}
	if cfg.ProtocolVersion == "" {
		cfg.ProtocolVersion = DefaultProtocolVersion
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Engine{
		cfg:      cfg,
		logger:   logger,
		registry: NewRegistry(),
	}
	e.registerBuiltins()
	return e
}

func (e *Engine) registerBuiltins() {
	e.registry.RegisterFunc("known_command", e.cmdKnownCommand)
	e.registry.RegisterFunc("list_commands", e.cmdListCommands)
	e.registry.RegisterFunc("name", e.cmdName)
	e.registry.RegisterFunc("protocol_version", e.cmdProtocolVersion)
	e.registry.RegisterFunc("quit", e.cmdQuit)
	e.registry.RegisterFunc("version", e.cmdVersion)
}

// Registry returns the command registry of the engine.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Register adds a handler for verb, replacing and releasing any existing one.
func (e *Engine) Register(verb string, h Handler) error {
	return e.registry.Register(verb, h)
}

// RegisterFunc adds a handler function for verb.
func (e *Engine) RegisterFunc(verb string, f func(cmd *Command) error) error {
	return e.registry.RegisterFunc(verb, f)
}

// Logger returns the logger of the engine.
func (e *Engine) Logger() *zap.Logger {
	return e.logger
}

// Name returns the configured engine name.
func (e *Engine) Name() string {
	return e.cfg.Name
}

// SetHooks installs the command lifecycle hooks. Must not be called while
// MainLoop is running.
func (e *Engine) SetHooks(h Hooks) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hooks = h
}

// SetPonderer enables pondering in MainLoop. Nil disables it.
// Must not be called while MainLoop is running.
func (e *Engine) SetPonderer(p Ponderer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ponderer = p
}

// SetInterrupter enables the interruptible read goroutine in MainLoop.
// Nil disables it. Must not be called while MainLoop is running.
func (e *Engine) SetInterrupter(i Interrupter) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.interrupter = i
}

func (e *Engine) collaborators() (Hooks, Ponderer, Interrupter) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hooks, e.ponderer, e.interrupter
}

// SetQuit makes MainLoop return after the current command.
func (e *Engine) SetQuit() {
	e.quit.Store(true)
}

// IsQuitSet reports whether the quit command was executed or the input ended.
func (e *Engine) IsQuitSet() bool {
	return e.quit.Load()
}

// Close releases all registered handlers.
func (e *Engine) Close() error {
	return e.registry.Close()
}

// ExecuteCommand executes a single command line and returns the success
// status and the response text. It never panics and does not call the hooks.
// Failures, including blank or comment lines, are reported as
// (false, message).
func (e *Engine) ExecuteCommand(line string) (ok bool, response string) {
	defer func() {
		if r := recover(); r != nil {
			ok, response = false, fmt.Sprintf("fatal error: %v", r)
		}
	}()

	if !IsCommandLine(line) {
		return false, newBadCommandError(line).Error()
	}
	cmd, err := ParseCommand(line)
	if err != nil {
		return false, err.Error()
	}
	return e.dispatch(cmd)
}

// dispatch runs the handler for cmd and returns the raw response text.
func (e *Engine) dispatch(cmd *Command) (ok bool, response string) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Command handler panicked",
				zap.String("command", cmd.Line()),
				zap.Any("panic", r))
			ok, response = false, fmt.Sprintf("fatal error: %v", r)
		}
	}()

	h, found := e.registry.Lookup(cmd.Name())
	if !found {
		return false, newUnknownCommandError(cmd.Name()).Error()
	}
	if err := h.HandleCommand(cmd); err != nil {
		var failure *Failure
		if !errors.As(err, &failure) {
			e.logger.Warn("Command handler returned unexpected error",
				zap.String("command", cmd.Line()),
				zap.Error(err))
		}
		return false, err.Error()
	}
	return true, cmd.Response()
}

// HandleCommand runs cmd and writes the formatted response to w, flushing w
// if it has a Flush method. It returns the success status of the command;
// the error is only set if writing the response failed.
func (e *Engine) HandleCommand(cmd *Command, w io.Writer) (bool, error) {
	hooks, _, _ := e.collaborators()
	var ok bool
	var response string
	if err := e.callHook(hooks, Hooks.BeforeHandleCommand); err != nil {
		response = err.Error()
	} else {
		ok, response = e.dispatch(cmd)
	}
	if err := e.callHook(hooks, Hooks.BeforeWritingResponse); err != nil {
		ok, response = false, err.Error()
	}
	response = ReplaceEmptyLines(response)
	if err := writeFlush(w, FormatResponse(ok, cmd.ID(), response)); err != nil {
		return ok, fmt.Errorf("writing response: %w", err)
	}
	return ok, nil
}

// callHook runs hook on hooks, if set. A panic in the hook is returned as
// an error.
func (e *Engine) callHook(hooks Hooks, hook func(Hooks)) (err error) {
	if hooks == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Command hook panicked", zap.Any("panic", r))
			err = fmt.Errorf("fatal error: %v", r)
		}
	}()
	hook(hooks)
	return nil
}

type flusher interface {
	Flush() error
}

func writeFlush(w io.Writer, s string) error {
	if _, err := io.WriteString(w, s); err != nil {
		return err
	}
	if f, ok := w.(flusher); ok {
		return f.Flush()
	}
	return nil
}

// ExecuteFile executes the commands in the file at path. Blank lines and
// comments are skipped. Every executed line and its response are written to
// log, which may be nil. Execution stops at the first failing command.
func (e *Engine) ExecuteFile(path string, log io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return newFileError("cannot read "+path, err)
	}
	defer f.Close()

	if log == nil {
		log = io.Discard
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineLength)
	var cmd Command
	for scanner.Scan() {
		line := scanner.Text()
		if !IsCommandLine(line) {
			continue
		}
		if err := cmd.Init(line); err != nil {
			return newFileError(fmt.Sprintf("executing %s failed", Trim(line)), err)
		}
		e.logger.Debug("Executing command from file",
			zap.String("file", path),
			zap.String("command", cmd.Line()))
		if _, err := fmt.Fprintln(log, cmd.Line()); err != nil {
			return fmt.Errorf("writing log: %w", err)
		}
		ok, err := e.HandleCommand(&cmd, log)
		if err != nil {
			return err
		}
		if !ok {
			return newFileError(fmt.Sprintf("executing %s failed", cmd.Line()), nil)
		}
	}
	if err := scanner.Err(); err != nil {
		return newFileError("cannot read "+path, err)
	}
	return nil
}

// MainLoop reads commands from in and writes responses to out until the
// quit command is executed or the input ends.
//
// If a Ponderer is set, it ponders while the loop waits for the next
// command; pondering is always stopped before the command is handled. If an
// Interrupter is set, lines are read by a separate goroutine that handles
// the interrupt and sleep directives as soon as they arrive.
//
// All goroutines started by MainLoop have exited when it returns. The
// returned error reports a failed read (other than io.EOF) or write.
func (e *Engine) MainLoop(in LineReader, out io.Writer) error {
	e.quit.Store(false)
	_, ponderer, interrupter := e.collaborators()

	var g errgroup.Group

	var ponder *ponderThread
	if ponderer != nil {
		ponder = newPonderThread(ponderer, e.logger)
		g.Go(ponder.run)
	}

	read := func() (string, bool, error) {
		return readCommandLine(in)
	}
	var reader *readThread
	if interrupter != nil {
		reader = newReadThread(in, interrupter, e.logger)
		g.Go(reader.run)
		read = reader.readCommand
	}

	var loopErr error
	var cmd Command
	for !e.IsQuitSet() {
		if ponder != nil {
			ponder.startPonder()
		}
		line, ok, err := read()
		if ponder != nil {
			ponder.stopPonder()
		}
		if err != nil {
			loopErr = fmt.Errorf("reading command: %w", err)
		}
		if !ok {
			e.SetQuit()
			break
		}
		if err := e.handleLine(&cmd, line, out); err != nil {
			loopErr = err
			e.SetQuit()
		}
	}

	if ponder != nil {
		ponder.quit()
	}
	if reader != nil {
		reader.quit()
	}
	if err := g.Wait(); err != nil && loopErr == nil {
		loopErr = err
	}
	return loopErr
}

func (e *Engine) handleLine(cmd *Command, line string, out io.Writer) error {
	if err := cmd.Init(line); err != nil {
		return writeFlush(out, FormatResponse(false, "", newBadCommandError(line).Error()))
	}
	_, err := e.HandleCommand(cmd, out)
	return err
}

func (e *Engine) cmdKnownCommand(cmd *Command) error {
	verb, err := cmd.SingleArg()
	if err != nil {
		return err
	}
	cmd.SetResponseBool(e.registry.IsRegistered(verb))
	return nil
}

func (e *Engine) cmdListCommands(cmd *Command) error {
	if err := cmd.CheckNoArgs(); err != nil {
		return err
	}
	for _, verb := range e.registry.Verbs() {
		cmd.WriteString(verb)
		cmd.WriteString("\n")
	}
	return nil
}

func (e *Engine) cmdName(cmd *Command) error {
	if err := cmd.CheckNoArgs(); err != nil {
		return err
	}
	cmd.WriteString(e.cfg.Name)
	return nil
}

func (e *Engine) cmdProtocolVersion(cmd *Command) error {
	if err := cmd.CheckNoArgs(); err != nil {
		return err
	}
	cmd.WriteString(e.cfg.ProtocolVersion)
	return nil
}

func (e *Engine) cmdQuit(cmd *Command) error {
	if err := cmd.CheckNoArgs(); err != nil {
		return err
	}
	e.SetQuit()
	return nil
}

// cmdVersion answers the configured version, which is empty unless set.
func (e *Engine) cmdVersion(cmd *Command) error {
	if err := cmd.CheckNoArgs(); err != nil {
		return err
	}
	cmd.WriteString(e.cfg.Version)
	return nil
}
