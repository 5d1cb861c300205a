package board

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DragState is the controller's gesture state: Idle, Dragging or Dropped.
type DragState interface {
	dragState()
}

// Idle means no gesture is in progress.
type Idle struct{}

// Dragging holds the card currently picked up and where it came from.
type Dragging struct {
	IssueID string
	Source  Location
}

// Dropped is the transient state between a committed drop and the return to
// Idle.
type Dropped struct {
	IssueID     string
	Source      Location
	Destination Location
}

func (Idle) dragState()     {}
func (Dragging) dragState() {}
func (Dropped) dragState()  {}

var (
	// ErrGestureActive is returned by Begin while another card is held.
	ErrGestureActive = errors.New("board: a drag gesture is already in progress")
	// ErrClosed is returned by Begin after Close.
	ErrClosed = errors.New("board: controller closed")
)

// ColumnChanger persists a column change for an issue.
type ColumnChanger interface {
	ChangeColumn(ctx context.Context, issueID, columnID string) error
}

// ChangerFunc adapts a function to ColumnChanger.
type ChangerFunc func(ctx context.Context, issueID, columnID string) error

func (f ChangerFunc) ChangeColumn(ctx context.Context, issueID, columnID string) error {
	return f(ctx, issueID, columnID)
}

// Move is a committed column-change intent.
type Move struct {
	Seq     uint64
	IssueID string
	From    Location
	To      Location
}

// OverlayEntry is the optimistic column of one issue.
type OverlayEntry struct {
	ColumnID string
	Seq      uint64
	// Settled is set once the remote call for Seq has returned.
	Settled bool
	Err     error
	// SettleMark is the controller's settle count when the entry settled.
	SettleMark uint64
}

// Overlay maps issue ids to their optimistic column.
type Overlay map[string]OverlayEntry

// Pending reports whether the entry is still waiting on its remote call.
func (e OverlayEntry) Pending() bool { return !e.Settled }

// Option configures a Controller.
type Option func(*Controller)

// WithSettleHook registers a callback run after every remote call returns.
// It runs on the dispatching goroutine and is skipped after Close.
func WithSettleHook(fn func(Move, error)) Option {
	return func(c *Controller) { c.onSettle = fn }
}

// WithTransitionHook registers a callback for every state change. It runs
// synchronously on the caller's goroutine.
func WithTransitionHook(fn func(from, to DragState)) Option {
	return func(c *Controller) { c.onTransition = fn }
}

// WithTimeout bounds each remote call. Zero means no bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Controller) { c.timeout = d }
}

// WithContext sets the parent context for remote calls.
func WithContext(ctx context.Context) Option {
	return func(c *Controller) { c.ctx = ctx }
}

// Controller drives the drag gesture state machine and keeps the optimistic
// overlay. It never retries or rolls back a failed remote call.
type Controller struct {
	mu      sync.Mutex
	state   DragState
	overlay Overlay
	seq     uint64
	settles uint64
	closed  bool
	wg      sync.WaitGroup

	changer      ColumnChanger
	onSettle     func(Move, error)
	onTransition func(from, to DragState)
	timeout      time.Duration
	ctx          context.Context
}

// NewController returns an idle controller that reports drops to changer.
func NewController(changer ColumnChanger, opts ...Option) *Controller {
	c := &Controller{
		state:   Idle{},
		overlay: make(Overlay),
		changer: changer,
		ctx:     context.Background(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current gesture state.
func (c *Controller) State() DragState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Active returns the held card, if any.
func (c *Controller) Active() (Dragging, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.state.(Dragging)
	return d, ok
}

// SettleMark returns how many remote calls have settled so far. Entries
// with a higher SettleMark settled after the mark was taken.
func (c *Controller) SettleMark() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settles
}

// Begin picks up a card.
func (c *Controller) Begin(issueID string, src Location) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if _, idle := c.state.(Idle); !idle {
		c.mu.Unlock()
		return ErrGestureActive
	}
	step := c.setState(Dragging{IssueID: issueID, Source: src})
	c.mu.Unlock()
	c.notify(step)
	return nil
}

// Cancel abandons the gesture without side effects.
func (c *Controller) Cancel() {
	c.mu.Lock()
	if _, dragging := c.state.(Dragging); !dragging {
		c.mu.Unlock()
		return
	}
	step := c.setState(Idle{})
	c.mu.Unlock()
	c.notify(step)
}

// Drop ends the gesture. A nil destination cancels it and a drop back onto
// the source slot is a no-op; neither produces a Move. Any other drop
// updates the overlay, dispatches the remote call in the background and
// returns the Move.
func (c *Controller) Drop(dst *Location) (Move, bool) {
	c.mu.Lock()
	d, ok := c.state.(Dragging)
	if !ok {
		c.mu.Unlock()
		return Move{}, false
	}
	if dst == nil || *dst == d.Source {
		step := c.setState(Idle{})
		c.mu.Unlock()
		c.notify(step)
		return Move{}, false
	}

	c.seq++
	mv := Move{Seq: c.seq, IssueID: d.IssueID, From: d.Source, To: *dst}
	c.overlay[mv.IssueID] = OverlayEntry{ColumnID: dst.ColumnID, Seq: mv.Seq}
	c.wg.Add(1)
	dropped := c.setState(Dropped{IssueID: d.IssueID, Source: d.Source, Destination: *dst})
	idle := c.setState(Idle{})
	c.mu.Unlock()

	c.notify(dropped)
	go c.dispatch(mv)
	c.notify(idle)
	return mv, true
}

func (c *Controller) dispatch(mv Move) {
	defer c.wg.Done()

	ctx := c.ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	var err error
	if c.changer != nil {
		err = c.changer.ChangeColumn(ctx, mv.IssueID, mv.To.ColumnID)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.settles++
	// A newer move for the same issue owns the entry now.
	if e, ok := c.overlay[mv.IssueID]; ok && e.Seq == mv.Seq {
		e.Settled = true
		e.Err = err
		e.SettleMark = c.settles
		c.overlay[mv.IssueID] = e
	}
	hook := c.onSettle
	c.mu.Unlock()

	if hook != nil {
		hook(mv, err)
	}
}

type step struct {
	from, to DragState
	hook     func(from, to DragState)
}

// setState must be called with mu held. The returned step is passed to
// notify once mu is released.
func (c *Controller) setState(to DragState) step {
	from := c.state
	c.state = to
	return step{from: from, to: to, hook: c.onTransition}
}

func (c *Controller) notify(s step) {
	if s.hook != nil {
		s.hook(s.from, s.to)
	}
}

// Overlay returns a snapshot of the optimistic entries.
func (c *Controller) Overlay() Overlay {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(Overlay, len(c.overlay))
	for k, v := range c.overlay {
		out[k] = v
	}
	return out
}

// Forget removes the overlay entry for the issue so its authoritative
// column shows again.
func (c *Controller) Forget(issueID string) {
	c.mu.Lock()
	delete(c.overlay, issueID)
	c.mu.Unlock()
}

// Retain keeps only the overlay entries for which keep returns true.
func (c *Controller) Retain(keep func(issueID string, e OverlayEntry) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, e := range c.overlay {
		if !keep(id, e) {
			delete(c.overlay, id)
		}
	}
}

// Apply returns copies of issues with the overlay applied.
func (c *Controller) Apply(issues []Issue) []Issue {
	return c.Overlay().Apply(issues)
}

// Board builds the view of columns and issues as the user currently sees it.
func (c *Controller) Board(columns []Column, issues []Issue) View {
	return Build(columns, c.Apply(issues))
}

// Close marks the controller as torn down. Remote calls already in flight
// still run to completion, but their results no longer touch the overlay or
// reach the settle hook.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// Wait blocks until every dispatched remote call has returned.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Apply returns copies of issues with every entry's column applied.
func (o Overlay) Apply(issues []Issue) []Issue {
	out := make([]Issue, len(issues))
	copy(out, issues)
	if len(o) == 0 {
		return out
	}
	for i := range out {
		if e, ok := o[out[i].ID]; ok {
			col := e.ColumnID
			out[i].ColumnID = &col
		}
	}
	return out
}
