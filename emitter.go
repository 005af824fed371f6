// Emission protocol for rxcore
// 所有流类型共享的发射协议：Idle → Subscribed → Emitting* → Terminal
package rxcore

import (
	"math"
	"sync"
	"sync/atomic"
)

// ============================================================================
// 流类型
// ============================================================================

// streamKind 流的种类，决定基数与终止信号规则
type streamKind int

const (
	kindObservable streamKind = iota
	kindFlowable
	kindMaybe
	kindSingle
	kindCompletable
)

func (k streamKind) String() string {
	switch k {
	case kindObservable:
		return "observable"
	case kindFlowable:
		return "flowable"
	case kindMaybe:
		return "maybe"
	case kindSingle:
		return "single"
	case kindCompletable:
		return "completable"
	default:
		return "unknown"
	}
}

// singleValue 值本身即是终止信号
func (k streamKind) singleValue() bool {
	return k == kindMaybe || k == kindSingle
}

// strict 违反协议时以warn级别报告
func (k streamKind) strict() bool {
	return k == kindMaybe || k == kindSingle || k == kindCompletable
}

// ============================================================================
// Emitter 接口
// ============================================================================

// Emitter 多值流的发射句柄，Create的生成器通过它发射信号
type Emitter interface {
	// Emit 发射一个信号
	Emit(item Item)
	// OnNext 发射一个值，终止后调用会被丢弃
	OnNext(value interface{})
	// OnError 以错误终止，只有第一次终止调用生效
	OnError(err error)
	// OnComplete 正常终止，只有第一次终止调用生效
	OnComplete()
	// SetDisposable 关联资源，取消或终止时一并释放
	SetDisposable(d Disposable)
	// IsDisposed 下游已取消或流已终止
	IsDisposed() bool
}

// FlowableEmitter 支持背压的发射句柄
type FlowableEmitter interface {
	Emitter
	// Requested 下游尚未满足的请求量
	Requested() int64
}

// MaybeEmitter 0或1个值的发射句柄
type MaybeEmitter interface {
	OnSuccess(value interface{})
	OnError(err error)
	OnComplete()
	SetDisposable(d Disposable)
	IsDisposed() bool
}

// SingleEmitter 恰好1个值的发射句柄
type SingleEmitter interface {
	OnSuccess(value interface{})
	OnError(err error)
	SetDisposable(d Disposable)
	IsDisposed() bool
}

// CompletableEmitter 只有终止信号的发射句柄
type CompletableEmitter interface {
	OnComplete()
	OnError(err error)
	SetDisposable(d Disposable)
	IsDisposed() bool
}

// ============================================================================
// emitter 协议引擎
// ============================================================================

// emitter 一个订阅的协议状态机。信号经队列串行投递，允许并发与重入调用
type emitter struct {
	kind     streamKind
	observer Observer

	mu       sync.Mutex
	queue    []Item
	emitting bool

	terminated int32
	disposed   int32

	resMu     sync.Mutex
	resources []Disposable

	demand func() int64
}

func newEmitter(kind streamKind, observer Observer) *emitter {
	return &emitter{kind: kind, observer: observer}
}

// Emit 发射一个信号
func (e *emitter) Emit(item Item) {
	item, ok := e.normalize(item)
	if !ok {
		return
	}

	e.mu.Lock()
	if atomic.LoadInt32(&e.disposed) == 1 || atomic.LoadInt32(&e.terminated) == 1 {
		e.mu.Unlock()
		e.absorb(item)
		return
	}
	if item.IsTerminal() || e.kind.singleValue() {
		atomic.StoreInt32(&e.terminated, 1)
	}
	if e.emitting {
		e.queue = append(e.queue, item)
		e.mu.Unlock()
		return
	}
	e.emitting = true
	e.mu.Unlock()

	e.drain(item)
}

// OnNext 发射一个值
func (e *emitter) OnNext(value interface{}) {
	e.Emit(CreateItem(value))
}

// OnSuccess 发射单值结果
func (e *emitter) OnSuccess(value interface{}) {
	e.Emit(CreateItem(value))
}

// OnError 以错误终止
func (e *emitter) OnError(err error) {
	e.Emit(CreateErrorItem(err))
}

// OnComplete 正常终止
func (e *emitter) OnComplete() {
	e.Emit(CreateCompleteItem())
}

// SetDisposable 关联资源
func (e *emitter) SetDisposable(d Disposable) {
	if d == nil {
		return
	}
	e.resMu.Lock()
	if atomic.LoadInt32(&e.disposed) == 1 {
		e.resMu.Unlock()
		d.Dispose()
		return
	}
	e.resources = append(e.resources, d)
	e.resMu.Unlock()
}

// IsDisposed 已取消或已终止
func (e *emitter) IsDisposed() bool {
	return atomic.LoadInt32(&e.disposed) == 1 || atomic.LoadInt32(&e.terminated) == 1
}

// Dispose 取消订阅，此后不再投递任何信号
func (e *emitter) Dispose() {
	e.release()
}

// Requested 下游尚未满足的请求量，非背压流视为无限
func (e *emitter) Requested() int64 {
	if e.demand == nil {
		return math.MaxInt64
	}
	return e.demand()
}

func (e *emitter) drain(item Item) {
	defer func() {
		if r := recover(); r != nil {
			e.mu.Lock()
			e.emitting = false
			e.queue = nil
			atomic.StoreInt32(&e.terminated, 1)
			e.mu.Unlock()
			e.release()
			ReportUnhandled(NewPanicError(r))
		}
	}()

	for {
		e.deliver(item)

		e.mu.Lock()
		if len(e.queue) == 0 {
			e.emitting = false
			e.mu.Unlock()
			return
		}
		item = e.queue[0]
		e.queue[0] = Item{}
		e.queue = e.queue[1:]
		e.mu.Unlock()
	}
}

func (e *emitter) deliver(item Item) {
	if atomic.LoadInt32(&e.disposed) == 1 {
		return
	}
	e.observer(item)
	if item.IsTerminal() || e.kind.singleValue() {
		e.release()
	}
}

func (e *emitter) release() {
	if !atomic.CompareAndSwapInt32(&e.disposed, 0, 1) {
		return
	}
	e.resMu.Lock()
	resources := e.resources
	e.resources = nil
	e.resMu.Unlock()

	for _, r := range resources {
		r.Dispose()
	}
}

// normalize 按流类型修正或拒绝信号
func (e *emitter) normalize(item Item) (Item, bool) {
	switch {
	case item.Kind == SignalError && item.Error == nil:
		item.Error = ErrNullError
	case item.Kind == SignalNext && e.kind == kindCompletable:
		e.violation(item, "completable cannot emit values")
		return item, false
	case item.Kind == SignalComplete && e.kind == kindSingle:
		e.violation(item, "single completed without a value")
		item = CreateErrorItem(ErrNoSuchElement)
	}
	return item, true
}

// absorb 记录被丢弃的信号
func (e *emitter) absorb(item Item) {
	if atomic.LoadInt32(&e.terminated) == 1 {
		e.violation(item, "signal after terminal state dropped")
		return
	}
	Logger().Debug().
		Str("stream", e.kind.String()).
		Str("signal", item.Kind.String()).
		Msg("signal after dispose dropped")
}

func (e *emitter) violation(item Item, reason string) {
	err := NewProtocolViolationError(e.kind.String(), item.Kind, reason)
	ev := Logger().Debug()
	if e.kind.strict() {
		ev = Logger().Warn()
	}
	ev.Err(err).Msg("emission protocol violation")
}

// ============================================================================
// 源组合辅助函数
// ============================================================================

// subscribeSource 执行源函数，生成器中的panic转换为错误信号
func subscribeSource(source func(*emitter), e *emitter) {
	defer func() {
		if r := recover(); r != nil {
			e.OnError(NewPanicError(r))
		}
	}()
	source(e)
}

// liftSource 在源与下游之间插入一个算子
func liftSource(upKind streamKind, source func(*emitter), op func(down *emitter) Observer) func(*emitter) {
	return func(down *emitter) {
		up := newEmitter(upKind, op(down))
		up.demand = down.demand
		down.SetDisposable(up)
		subscribeSource(source, up)
	}
}

// mapSource Map算子：函数返回的错误或panic转换为错误信号
func mapSource(kind streamKind, source func(*emitter), fn Transformer) func(*emitter) {
	return liftSource(kind, source, func(down *emitter) Observer {
		return func(item Item) {
			if item.Kind != SignalNext {
				down.Emit(item)
				return
			}
			result, err := applyTransformer(fn, item.Value)
			if err != nil {
				down.OnError(err)
				return
			}
			down.OnNext(result)
		}
	})
}

// filterSource Filter算子
func filterSource(kind streamKind, source func(*emitter), predicate Predicate, onDrop func(down *emitter)) func(*emitter) {
	return liftSource(kind, source, func(down *emitter) Observer {
		return func(item Item) {
			if item.Kind != SignalNext {
				down.Emit(item)
				return
			}
			ok, err := applyPredicate(predicate, item.Value)
			switch {
			case err != nil:
				down.OnError(err)
			case ok:
				down.Emit(item)
			case onDrop != nil:
				onDrop(down)
			}
		}
	})
}

// subscribeOnSource 订阅时的工作在scheduler上执行
func subscribeOnSource(source func(*emitter), scheduler Scheduler) func(*emitter) {
	return func(down *emitter) {
		task := scheduleOrAbort(scheduler, func() {
			if down.IsDisposed() {
				return
			}
			subscribeSource(source, down)
		}, func() {
			down.OnError(ErrSchedulerShutdown)
		})
		down.SetDisposable(task)
	}
}

// observeOnSource 下游信号在scheduler上投递
func observeOnSource(kind streamKind, source func(*emitter), scheduler Scheduler) func(*emitter) {
	return liftSource(kind, source, func(down *emitter) Observer {
		return newObserveOnObserver(down, scheduler).onItem
	})
}

// observeOnObserver 每个订阅一个队列，保证在线程池上也按FIFO投递
type observeOnObserver struct {
	down      *emitter
	scheduler Scheduler

	mu        sync.Mutex
	queue     []Item
	scheduled bool
	aborted   bool
}

func newObserveOnObserver(down *emitter, scheduler Scheduler) *observeOnObserver {
	return &observeOnObserver{down: down, scheduler: scheduler}
}

func (o *observeOnObserver) onItem(item Item) {
	o.mu.Lock()
	if o.aborted {
		o.mu.Unlock()
		return
	}
	o.queue = append(o.queue, item)
	if o.scheduled {
		o.mu.Unlock()
		return
	}
	o.scheduled = true
	o.mu.Unlock()

	scheduleOrAbort(o.scheduler, o.drain, o.abort)
}

// abort 调度器关闭，排队的信号被丢弃，下游以ErrSchedulerShutdown终止
func (o *observeOnObserver) abort() {
	o.mu.Lock()
	o.aborted = true
	o.queue = nil
	o.mu.Unlock()
	o.down.OnError(ErrSchedulerShutdown)
}

func (o *observeOnObserver) drain() {
	for {
		o.mu.Lock()
		if o.down.IsDisposed() {
			o.queue = nil
		}
		if len(o.queue) == 0 {
			o.scheduled = false
			o.mu.Unlock()
			return
		}
		item := o.queue[0]
		o.queue[0] = Item{}
		o.queue = o.queue[1:]
		o.mu.Unlock()

		o.down.Emit(item)
	}
}
