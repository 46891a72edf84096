package process

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/camrecorder/internal/logging"
)

// State is the lifecycle state of a pooled process.
type State string

// Process states.
const (
	StateIdle     State = "idle"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateError    State = "error" // exited on its own with a failure
)

// Active reports whether a process in state s is, or is about to be, running.
func (s State) Active() bool {
	return s == StateStarting || s == StateRunning
}

// Errors returned by Start.
var (
	ErrAlreadyRunning = errors.New("process already running")
	ErrPoolClosed     = errors.New("process pool closed")
)

// DefaultStopTimeout bounds how long Stop waits for a process to go away.
const DefaultStopTimeout = 10 * time.Second

// Info is a snapshot of a pooled process.
type Info struct {
	ID        string
	State     State
	StartedAt time.Time
	LastError error
}

// PoolOptions configures a Pool. Only CommandProvider is required.
type PoolOptions struct {
	// CommandProvider returns the command line for a process id. It is called
	// on every start so commands can reflect current settings.
	CommandProvider func(id string) (command string, err error)

	// OnStateChange observes every transition, including exits.
	OnStateChange func(id string, oldState, newState State, err error)

	// ConfigureProcess runs before start, e.g. to attach a stdout sink.
	ConfigureProcess func(id string, proc *Process)

	StopTimeout time.Duration  // default DefaultStopTimeout
	Logger      logging.Logger // default slog.Default()
}

// Pool runs named processes, at most one per id.
type Pool struct {
	opts   PoolOptions
	logger logging.Logger

	mu      sync.Mutex
	entries map[string]*entry
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type entry struct {
	proc      *Process
	state     State
	startedAt time.Time
	lastErr   error
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewPool creates a pool. It panics without a CommandProvider.
func NewPool(opts PoolOptions) *Pool {
	if opts.CommandProvider == nil {
		panic("process: PoolOptions.CommandProvider is required")
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = DefaultStopTimeout
	}
	var logger logging.Logger = slog.Default()
	if opts.Logger != nil {
		logger = opts.Logger
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		opts:    opts,
		logger:  logger,
		entries: make(map[string]*entry),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the process for id. The command is built fresh each time.
func (p *Pool) Start(id string) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	if e, ok := p.entries[id]; ok && e.state.Active() {
		p.mu.Unlock()
		return fmt.Errorf("%s: %w", id, ErrAlreadyRunning)
	}

	command, err := p.opts.CommandProvider(id)
	if err != nil {
		p.mu.Unlock()
		return fmt.Errorf("build command for %s: %w", id, err)
	}

	ctx, cancel := context.WithCancel(p.ctx)
	e := &entry{
		proc:      NewProcess(id, command, p.logger),
		state:     StateStarting,
		startedAt: time.Now(),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	if p.opts.ConfigureProcess != nil {
		p.opts.ConfigureProcess(id, e.proc)
	}
	p.entries[id] = e
	p.wg.Add(1)
	p.mu.Unlock()

	p.notify(id, StateIdle, StateStarting, nil)
	go p.run(ctx, id, e)
	return nil
}

func (p *Pool) run(ctx context.Context, id string, e *entry) {
	defer p.wg.Done()
	defer close(e.done)

	if p.transition(e, StateStarting, StateRunning) {
		p.notify(id, StateStarting, StateRunning, nil)
	}

	code := e.proc.Run(ctx)

	p.mu.Lock()
	old := e.state
	next, err := StateIdle, error(nil)
	if code != 0 && old != StateStopping && ctx.Err() == nil {
		next, err = StateError, fmt.Errorf("exited with code %d", code)
		e.lastErr = err
	}
	e.state = next
	p.mu.Unlock()

	if next == StateError {
		p.logger.Error("Process failed", "id", id, "exit_code", code)
	}
	p.notify(id, old, next, err)
}

// transition moves e to state to if it is still in state from.
func (p *Pool) transition(e *entry, from, to State) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e.state != from {
		return false
	}
	e.state = to
	return true
}

// Stop stops the process for id and waits for it, up to the stop timeout.
// Stopping an unknown or exited id is not an error.
func (p *Pool) Stop(id string) error {
	p.mu.Lock()
	e, ok := p.entries[id]
	if !ok {
		p.mu.Unlock()
		return nil
	}
	old := e.state
	if !old.Active() {
		delete(p.entries, id)
		p.mu.Unlock()
		return nil
	}
	e.state = StateStopping
	p.mu.Unlock()

	p.notify(id, old, StateStopping, nil)
	p.logger.Info("Stopping process", "id", id)
	e.cancel()

	var err error
	select {
	case <-e.done:
	case <-time.After(p.opts.StopTimeout):
		p.logger.Warn("Timeout waiting for process to stop", "id", id, "timeout", p.opts.StopTimeout)
		err = fmt.Errorf("%s did not stop within %s", id, p.opts.StopTimeout)
	}

	p.mu.Lock()
	if p.entries[id] == e {
		delete(p.entries, id)
	}
	p.mu.Unlock()
	return err
}

// GetStatus returns a snapshot for id, StateIdle if it is unknown.
func (p *Pool) GetStatus(id string) Info {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[id]
	if !ok {
		return Info{ID: id, State: StateIdle}
	}
	return Info{ID: id, State: e.state, StartedAt: e.startedAt, LastError: e.lastErr}
}

// IsRunning reports whether id is in StateRunning.
func (p *Pool) IsRunning(id string) bool {
	return p.GetStatus(id).State == StateRunning
}

// StopAll stops every process in parallel and waits for all of them. The
// pool cannot start processes afterwards.
func (p *Pool) StopAll() {
	p.mu.Lock()
	p.closed = true
	ids := make([]string, 0, len(p.entries))
	for id := range p.entries {
		ids = append(ids, id)
	}
	p.mu.Unlock()

	p.logger.Info("Stopping all processes", "count", len(ids))
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := p.Stop(id); err != nil {
				p.logger.Warn("Failed to stop process", "id", id, "error", err)
			}
		}()
	}
	wg.Wait()

	p.cancel()
	p.wg.Wait()
}

func (p *Pool) notify(id string, oldState, newState State, err error) {
	if p.opts.OnStateChange != nil {
		p.opts.OnStateChange(id, oldState, newState, err)
	}
}
