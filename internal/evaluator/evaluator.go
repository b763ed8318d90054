// Package evaluator runs user code in an external evaluator process.
//
// Requests are written to the process's stdin as JSON lines. The process
// answers on stdout: lines starting with ResultPrefix carry results, any
// other line is print output. Starting a new evaluation while one is in
// flight restarts the process, so a long-running or stuck run never
// delays the next one.
package evaluator

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

// ErrNotRunning is returned when evaluating without a running process.
var ErrNotRunning = errors.New("evaluator not running")

// maxLineSize bounds a single stdout line; variable snapshots can be large.
const maxLineSize = 16 << 20

// Handler receives evaluator output. Methods are called from reader
// goroutines, never concurrently for the same stream.
type Handler interface {
	// OnResult receives each decoded result.
	OnResult(res Result)
	// OnPrint receives print output, newline-terminated.
	OnPrint(text string)
	// OnStderr receives stderr lines.
	OnStderr(text string)
	// OnProcessError receives failures of the process itself.
	OnProcessError(err error)
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Evaluator) {
		e.logger = logger
	}
}

// WithDir sets the working directory of the process.
func WithDir(dir string) Option {
	return func(e *Evaluator) {
		e.dir = dir
	}
}

// WithEnv appends environment variables to the process environment.
func WithEnv(env ...string) Option {
	return func(e *Evaluator) {
		e.env = append(e.env, env...)
	}
}

// WithBackOff sets the retry policy used when starting the process.
func WithBackOff(fn func() backoff.BackOff) Option {
	return func(e *Evaluator) {
		e.newBackOff = fn
	}
}

// Evaluator manages the evaluator process.
type Evaluator struct {
	command    []string
	dir        string
	env        []string
	handler    Handler
	logger     *slog.Logger
	newBackOff func() backoff.BackOff

	mu       sync.Mutex
	proc     *process
	inFlight bool
	restarts int
	closed   bool

	// pending holds the newest request while a start is being retried.
	pending  []byte
	retrying bool
}

// process is one running evaluator child.
type process struct {
	id    string
	cmd   *exec.Cmd
	stdin io.WriteCloser
	done  chan struct{}

	// stopping is set before an intentional kill.
	stopping bool
}

// New creates an Evaluator running command. Nothing starts until Start.
func New(command []string, handler Handler, opts ...Option) *Evaluator {
	e := &Evaluator{
		command: command,
		handler: handler,
		logger:  slog.New(slog.DiscardHandler),
		newBackOff: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.InitialInterval = 100 * time.Millisecond
			bo.MaxElapsedTime = 5 * time.Second
			return bo
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start launches the process, retrying transient failures. A missing
// executable fails immediately.
func (e *Evaluator) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrNotRunning
	}
	return e.startLocked(ctx)
}

func (e *Evaluator) startLocked(ctx context.Context) error {
	if len(e.command) == 0 {
		return fmt.Errorf("evaluator: empty command")
	}

	var proc *process
	op := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		p, err := e.spawn()
		if err != nil {
			if permanentStartError(err) {
				return backoff.Permanent(err)
			}
			e.logger.Warn("evaluator start failed, retrying", "error", err)
			return err
		}
		proc = p
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(e.newBackOff(), ctx)); err != nil {
		return fmt.Errorf("start evaluator: %w", err)
	}
	e.setProcLocked(proc)
	return nil
}

func (e *Evaluator) setProcLocked(p *process) {
	e.proc = p
	e.inFlight = false
	e.logger.Info("evaluator started", "id", p.id, "pid", p.cmd.Process.Pid)
}

// permanentStartError reports start failures that retrying cannot fix.
func permanentStartError(err error) bool {
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission)
}

// retryStart keeps starting the process in the background after a failed
// attempt in Evaluate, then sends the newest pending request.
func (e *Evaluator) retryStart(ctx context.Context) {
	op := func() error {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.closed {
			return backoff.Permanent(ErrNotRunning)
		}
		if e.proc != nil {
			return nil
		}
		p, err := e.spawn()
		if err != nil {
			if permanentStartError(err) {
				return backoff.Permanent(err)
			}
			e.logger.Warn("evaluator start failed, retrying", "error", err)
			return err
		}
		e.setProcLocked(p)
		if e.pending != nil {
			if _, err := p.stdin.Write(e.pending); err != nil {
				return backoff.Permanent(fmt.Errorf("write evaluator request: %w", err))
			}
			e.inFlight = true
		}
		return nil
	}
	err := backoff.Retry(op, backoff.WithContext(e.newBackOff(), ctx))

	e.mu.Lock()
	e.retrying = false
	e.pending = nil
	closed := e.closed
	e.mu.Unlock()
	if err != nil && !closed {
		e.handler.OnProcessError(fmt.Errorf("start evaluator: %w", err))
	}
}

// spawn starts one child and its reader goroutines.
func (e *Evaluator) spawn() (*process, error) {
	cmd := exec.Command(e.command[0], e.command[1:]...)
	cmd.Dir = e.dir
	cmd.Env = append(os.Environ(), e.env...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	p := &process{
		id:    uuid.NewString(),
		cmd:   cmd,
		stdin: stdin,
		done:  make(chan struct{}),
	}

	var readers sync.WaitGroup
	readers.Add(2)
	go func() {
		defer readers.Done()
		e.readStdout(p, stdout)
	}()
	go func() {
		defer readers.Done()
		e.readStderr(p, stderr)
	}()
	go func() {
		readers.Wait()
		err := cmd.Wait()
		close(p.done)
		e.exited(p, err)
	}()
	return p, nil
}

func (e *Evaluator) readStdout(p *process, r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		if !e.isCurrent(p) {
			continue
		}
		line := scanner.Text()
		res, ok, err := ParseResult(line)
		switch {
		case err != nil:
			e.handler.OnProcessError(err)
		case ok:
			if res.Done {
				e.mu.Lock()
				e.inFlight = false
				e.mu.Unlock()
			}
			e.handler.OnResult(res)
		default:
			e.handler.OnPrint(line + "\n")
		}
	}
	if err := scanner.Err(); err != nil && e.isCurrent(p) {
		e.handler.OnProcessError(fmt.Errorf("read evaluator output: %w", err))
	}
}

func (e *Evaluator) readStderr(p *process, r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		if e.isCurrent(p) {
			e.handler.OnStderr(scanner.Text())
		}
	}
}

// exited reports an unexpected exit of the current process.
func (e *Evaluator) exited(p *process, err error) {
	e.mu.Lock()
	current := e.proc == p
	stopping := p.stopping
	if current {
		e.proc = nil
		e.inFlight = false
	}
	e.mu.Unlock()

	if !current || stopping {
		return
	}
	if err == nil {
		err = errors.New("evaluator exited")
	}
	e.logger.Warn("evaluator exited unexpectedly", "id", p.id, "error", err)
	e.handler.OnProcessError(err)
}

func (e *Evaluator) isCurrent(p *process) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.proc == p
}

// Evaluate sends req to the process. If an evaluation is still in flight,
// or the process is gone, a fresh process is started first. Evaluate never
// waits for an abandoned process to exit. When the start fails transiently
// it is retried in the background and req is sent once the process is up;
// a later Evaluate replaces it. Failures of that retry go to the handler.
func (e *Evaluator) Evaluate(ctx context.Context, req Request) error {
	line, err := EncodeRequest(req)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrNotRunning
	}
	if len(e.command) == 0 {
		return fmt.Errorf("evaluator: empty command")
	}

	if e.proc != nil && e.inFlight {
		e.logger.Debug("evaluation in flight, restarting evaluator", "id", e.proc.id)
		e.killLocked()
		e.restarts++
	}
	if e.proc == nil {
		p, err := e.spawn()
		if err != nil {
			if permanentStartError(err) {
				return fmt.Errorf("start evaluator: %w", err)
			}
			e.logger.Warn("evaluator start failed, retrying in background", "error", err)
			e.pending = line
			if !e.retrying {
				e.retrying = true
				go e.retryStart(context.WithoutCancel(ctx))
			}
			return nil
		}
		e.setProcLocked(p)
	}
	e.pending = nil

	if _, err := e.proc.stdin.Write(line); err != nil {
		return fmt.Errorf("write evaluator request: %w", err)
	}
	e.inFlight = true
	return nil
}

// killLocked detaches the current process and kills it without waiting.
// Output still arriving from it is dropped and its exit is not reported.
func (e *Evaluator) killLocked() *process {
	p := e.proc
	if p == nil {
		return nil
	}
	p.stopping = true
	e.proc = nil
	e.inFlight = false
	_ = p.stdin.Close()
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	return p
}

// InFlight reports whether an evaluation is running.
func (e *Evaluator) InFlight() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inFlight
}

// Restarts returns how many times an in-flight evaluation was abandoned.
func (e *Evaluator) Restarts() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.restarts
}

// ProcessID returns the id of the running process, or "" if none.
func (e *Evaluator) ProcessID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.proc == nil {
		return ""
	}
	return e.proc.id
}

// Stop kills the process and waits for it to exit. The evaluator cannot
// be restarted.
func (e *Evaluator) Stop() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.pending = nil
	p := e.killLocked()
	e.mu.Unlock()

	// The exit goroutine takes e.mu, so wait without holding it.
	if p != nil {
		<-p.done
	}
	return nil
}
