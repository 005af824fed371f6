// Operators for rxcore
// Observable的过滤、副作用与收集算子
package rxcore

import (
	"context"
	"sync"
	"sync/atomic"
)

// invokeSafely 执行副作用回调，panic转换为错误
func invokeSafely(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewPanicError(r)
		}
	}()
	fn()
	return nil
}

// ============================================================================
// 过滤算子
// ============================================================================

// Take 只发射前count个值，达到数量后完成并取消上游
func (o *Observable) Take(count int) *Observable {
	return newObservable(takeSource(kindObservable, o.source, count))
}

func takeSource(kind streamKind, source func(*emitter), count int) func(*emitter) {
	if count <= 0 {
		return func(down *emitter) {
			down.OnComplete()
		}
	}
	return liftSource(kind, source, func(down *emitter) Observer {
		var taken int
		return func(item Item) {
			if item.Kind != SignalNext {
				down.Emit(item)
				return
			}
			taken++
			down.Emit(item)
			if taken == count {
				down.OnComplete()
			}
		}
	})
}

// Skip 跳过前count个值
func (o *Observable) Skip(count int) *Observable {
	if count <= 0 {
		return o
	}
	return newObservable(liftSource(kindObservable, o.source, func(down *emitter) Observer {
		var skipped int
		return func(item Item) {
			if item.Kind == SignalNext && skipped < count {
				skipped++
				return
			}
			down.Emit(item)
		}
	}))
}

// ============================================================================
// 副作用算子
// ============================================================================

// DoOnNext 每个值到达下游之前执行action
func (o *Observable) DoOnNext(action func(value interface{})) *Observable {
	return newObservable(doOnSource(kindObservable, o.source, SignalNext, func(item Item) {
		action(item.Value)
	}))
}

// DoOnError 错误到达下游之前执行action
func (o *Observable) DoOnError(action func(err error)) *Observable {
	return newObservable(doOnSource(kindObservable, o.source, SignalError, func(item Item) {
		action(item.Error)
	}))
}

// DoOnComplete 完成到达下游之前执行action
func (o *Observable) DoOnComplete(action func()) *Observable {
	return newObservable(doOnSource(kindObservable, o.source, SignalComplete, func(Item) {
		action()
	}))
}

// DoOnDispose 下游主动取消时执行action，正常终止不会触发
func (o *Observable) DoOnDispose(action func()) *Observable {
	return newObservable(doOnDisposeSource(kindObservable, o.source, action))
}

// doOnSource 对指定类型的信号执行副作用，action的panic以错误终止下游
func doOnSource(kind streamKind, source func(*emitter), signal SignalKind, action func(item Item)) func(*emitter) {
	return liftSource(kind, source, func(down *emitter) Observer {
		return func(item Item) {
			if item.Kind == signal {
				if err := invokeSafely(func() { action(item) }); err != nil {
					if item.Kind == SignalError {
						err = NewCompositeError(item.Error, err)
					}
					down.OnError(err)
					return
				}
			}
			down.Emit(item)
		}
	})
}

func doOnDisposeSource(kind streamKind, source func(*emitter), action func()) func(*emitter) {
	return func(down *emitter) {
		var terminated int32
		down.SetDisposable(NewDisposable(func() {
			if atomic.LoadInt32(&terminated) == 0 {
				if err := invokeSafely(action); err != nil {
					ReportUnhandled(err)
				}
			}
		}))
		liftSource(kind, source, func(down *emitter) Observer {
			return func(item Item) {
				if item.IsTerminal() || kind.singleValue() {
					atomic.StoreInt32(&terminated, 1)
				}
				down.Emit(item)
			}
		})(down)
	}
}

// ============================================================================
// 收集算子
// ============================================================================

// ToSlice 收集所有值，完成时以切片作为结果
func (o *Observable) ToSlice() *Single {
	return newSingle(func(down *emitter) {
		var values []interface{}
		up := newEmitter(kindObservable, func(item Item) {
			switch item.Kind {
			case SignalNext:
				values = append(values, item.Value)
			case SignalError:
				down.OnError(item.Error)
			case SignalComplete:
				if values == nil {
					values = []interface{}{}
				}
				down.OnSuccess(values)
			}
		})
		down.SetDisposable(up)
		subscribeSource(o.source, up)
	})
}

// FirstElement 第一个值作为Maybe的结果，空流时完成
func (o *Observable) FirstElement() *Maybe {
	return newMaybe(func(down *emitter) {
		up := newEmitter(kindObservable, func(item Item) {
			down.Emit(item)
		})
		down.SetDisposable(up)
		subscribeSource(o.source, up)
	})
}

// ToChannel 在新的goroutine中订阅并把信号写入通道，终止信号写入后关闭通道。
// ctx取消时取消上游并关闭通道，读者停止读取后不会阻塞上游
func (o *Observable) ToChannel(ctx context.Context, opts ...Option) <-chan Item {
	cfg := &options{bufferSize: defaultBufferSize}
	for _, opt := range opts {
		opt.apply(cfg)
	}
	ch := make(chan Item, cfg.bufferSize)

	var (
		mu     sync.Mutex
		closed bool
	)
	// closeLocked 调用者持有mu
	closeLocked := func() {
		if !closed {
			closed = true
			close(ch)
		}
	}

	var stop func() bool
	e := newEmitter(kindObservable, func(item Item) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- item:
			if item.IsTerminal() {
				closeLocked()
				stop()
			}
		case <-ctx.Done():
			closeLocked()
		}
	})
	stop = context.AfterFunc(ctx, func() {
		e.Dispose()
		mu.Lock()
		closeLocked()
		mu.Unlock()
	})
	go subscribeSource(o.source, e)
	return ch
}
