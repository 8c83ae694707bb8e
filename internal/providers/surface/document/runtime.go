package document

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GriffinCanCode/offscreen/internal/shared/types"
	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
)

// DefaultScriptTimeout bounds a single evaluation
const DefaultScriptTimeout = 5 * time.Second

type evalResult struct {
	value any
	err   error
}

// runtime serializes every script of one surface on a goja_nodejs event
// loop. The goja.Runtime is only touched from the loop goroutine, except for
// Interrupt which is safe to call from anywhere.
type runtime struct {
	loop    *eventloop.EventLoop
	vm      *goja.Runtime
	timeout time.Duration

	running atomic.Uint64
	seq     atomic.Uint64

	closeOnce sync.Once
	done      chan struct{}
}

func newRuntime(timeout time.Duration, setup func(vm *goja.Runtime) error) (*runtime, error) {
	loop := eventloop.NewEventLoop(eventloop.EnableConsole(false))
	loop.Start()

	r := &runtime{loop: loop, timeout: timeout, done: make(chan struct{})}

	errCh := make(chan error, 1)
	ok := loop.RunOnLoop(func(vm *goja.Runtime) {
		r.vm = vm
		vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
		for _, name := range []string{"require", "process", "module", "exports"} {
			_ = vm.GlobalObject().Delete(name)
		}
		errCh <- setup(vm)
	})
	if !ok {
		loop.Stop()
		return nil, errors.New("event loop not running")
	}
	if err := <-errCh; err != nil {
		loop.Stop()
		return nil, fmt.Errorf("failed to initialize runtime: %w", err)
	}
	return r, nil
}

// eval runs script and waits for its completion value. A returned promise is
// awaited.
func (r *runtime) eval(ctx context.Context, script string) (any, error) {
	token := r.seq.Add(1)
	res := make(chan evalResult, 1)

	ok := r.loop.RunOnLoop(func(vm *goja.Runtime) {
		vm.ClearInterrupt()
		r.running.Store(token)
		v, err := vm.RunString(script)
		r.running.Store(0)
		if err != nil {
			res <- evalResult{err: scriptError(err)}
			return
		}
		settle(vm, v, res)
	})
	if !ok {
		return nil, fmt.Errorf("%w: runtime stopped", types.ErrScript)
	}

	var expired <-chan time.Time
	if r.timeout > 0 {
		timer := time.NewTimer(r.timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case out := <-res:
		return out.value, out.err
	case <-expired:
		r.interrupt(token, "script timeout")
		return nil, fmt.Errorf("%w: timed out after %s", types.ErrScript, r.timeout)
	case <-ctx.Done():
		r.interrupt(token, "cancelled")
		return nil, ctx.Err()
	case <-r.done:
		return nil, types.ErrInstanceDestroyed
	}
}

// interrupt stops the job identified by token if it is still executing
func (r *runtime) interrupt(token uint64, reason string) {
	if r.running.Load() == token {
		r.vm.Interrupt(reason)
	}
}

func (r *runtime) close() {
	r.closeOnce.Do(func() {
		close(r.done)
		if r.vm != nil {
			r.vm.Interrupt("runtime closed")
		}
		r.loop.Stop()
	})
}

// settle delivers v, waiting on the loop for pending promises
func settle(vm *goja.Runtime, v goja.Value, res chan<- evalResult) {
	p, ok := v.Export().(*goja.Promise)
	if !ok {
		res <- evalResult{value: export(v)}
		return
	}

	switch p.State() {
	case goja.PromiseStateFulfilled:
		res <- evalResult{value: export(p.Result())}
		return
	case goja.PromiseStateRejected:
		res <- evalResult{err: rejection(p.Result())}
		return
	}

	obj := v.ToObject(vm)
	then, ok := goja.AssertFunction(obj.Get("then"))
	if !ok {
		res <- evalResult{err: fmt.Errorf("%w: promise has no then", types.ErrScript)}
		return
	}
	onFulfilled := func(call goja.FunctionCall) goja.Value {
		res <- evalResult{value: export(call.Argument(0))}
		return goja.Undefined()
	}
	onRejected := func(call goja.FunctionCall) goja.Value {
		res <- evalResult{err: rejection(call.Argument(0))}
		return goja.Undefined()
	}
	if _, err := then(obj, vm.ToValue(onFulfilled), vm.ToValue(onRejected)); err != nil {
		res <- evalResult{err: scriptError(err)}
	}
}

func export(v goja.Value) any {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	return v.Export()
}

func rejection(reason goja.Value) error {
	if reason == nil || goja.IsUndefined(reason) {
		return fmt.Errorf("%w: promise rejected", types.ErrScript)
	}
	return fmt.Errorf("%w: promise rejected: %s", types.ErrScript, reason.String())
}

func scriptError(err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return fmt.Errorf("%w: interrupted: %v", types.ErrScript, interrupted.Value())
	}
	var ex *goja.Exception
	if errors.As(err, &ex) {
		return fmt.Errorf("%w: %s", types.ErrScript, ex.Value().String())
	}
	return fmt.Errorf("%w: %v", types.ErrScript, err)
}
