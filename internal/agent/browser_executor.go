package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/semanticbrowser/kb/internal/browser"
	"github.com/semanticbrowser/kb/internal/errs"
)

// BrowserExecutor hands a task exactly one Tab for its lifetime, mirroring
// the teacher's EngineSink/NewSessionManagerWithSink injectable-executor
// test seam: production code drives a real browser.Pool, tests drive a
// fixed Tab or a stub.
type BrowserExecutor interface {
	// Tab returns the Tab bound to taskID, acquiring one from the pool on
	// first call for that ID.
	Tab(ctx context.Context, taskID string) (*browser.Tab, error)
	// Release returns the tab bound to taskID, if any, to the pool.
	Release(taskID string)
}

// PoolBrowserExecutor acquires one tab per task from a browser.Pool and
// holds it until Release is called for that task ID.
type PoolBrowserExecutor struct {
	pool *browser.Pool

	mu    sync.Mutex
	bound map[string]*browser.Tab
	done  map[string]func()
}

// NewPoolBrowserExecutor wraps pool.
func NewPoolBrowserExecutor(pool *browser.Pool) *PoolBrowserExecutor {
	return &PoolBrowserExecutor{
		pool:  pool,
		bound: make(map[string]*browser.Tab),
		done:  make(map[string]func()),
	}
}

func (e *PoolBrowserExecutor) Tab(ctx context.Context, taskID string) (*browser.Tab, error) {
	e.mu.Lock()
	if tab, ok := e.bound[taskID]; ok {
		e.mu.Unlock()
		return tab, nil
	}
	e.mu.Unlock()

	tab, release, err := e.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.bound[taskID] = tab
	e.done[taskID] = release
	e.mu.Unlock()
	return tab, nil
}

func (e *PoolBrowserExecutor) Release(taskID string) {
	e.mu.Lock()
	release, ok := e.done[taskID]
	delete(e.bound, taskID)
	delete(e.done, taskID)
	e.mu.Unlock()
	if ok {
		release()
	}
}

// MockBrowserExecutor hands every task the same pre-built Tab (or none, if
// Fixed is nil), for agent tests that never touch a real browser.Pool.
type MockBrowserExecutor struct {
	Fixed    *browser.Tab
	released []string
}

func NewMockBrowserExecutor(fixed *browser.Tab) *MockBrowserExecutor {
	return &MockBrowserExecutor{Fixed: fixed}
}

func (e *MockBrowserExecutor) Tab(ctx context.Context, taskID string) (*browser.Tab, error) {
	if e.Fixed == nil {
		return nil, errs.New(errs.KindInternal, fmt.Sprintf("no browser available for task %s", taskID))
	}
	return e.Fixed, nil
}

func (e *MockBrowserExecutor) Release(taskID string) {
	e.released = append(e.released, taskID)
}

// Released returns the task IDs Release was called for, in call order.
func (e *MockBrowserExecutor) Released() []string { return e.released }
