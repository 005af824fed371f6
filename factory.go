// Factory functions for rxcore
// Observable工厂函数，发射在订阅者所在的上下文中同步执行
package rxcore

import (
	"time"
)

// ============================================================================
// 基础工厂函数
// ============================================================================

// Just 依次发射给定的值后完成
func Just(values ...interface{}) *Observable {
	return FromSequence(values)
}

// FromSequence 按顺序发射切片中的每个元素后完成，空切片立即完成
func FromSequence(items []interface{}) *Observable {
	return newObservable(func(e *emitter) {
		for _, item := range items {
			if e.IsDisposed() {
				return
			}
			e.OnNext(item)
		}
		e.OnComplete()
	})
}

// Empty 立即完成
func Empty() *Observable {
	return newObservable(func(e *emitter) {
		e.OnComplete()
	})
}

// Never 永不发射任何信号
func Never() *Observable {
	return newObservable(func(e *emitter) {})
}

// Error 立即以错误终止
func Error(err error) *Observable {
	return newObservable(func(e *emitter) {
		e.OnError(err)
	})
}

// Range 发射[start, start+count)区间的整数
func Range(start, count int) *Observable {
	return newObservable(func(e *emitter) {
		for i := 0; i < count; i++ {
			if e.IsDisposed() {
				return
			}
			e.OnNext(start + i)
		}
		e.OnComplete()
	})
}

// FromChannel 发射通道中的值，通道关闭时完成。取消后在下一次接收时停止读取
func FromChannel(ch <-chan interface{}) *Observable {
	return newObservable(func(e *emitter) {
		for value := range ch {
			if e.IsDisposed() {
				return
			}
			e.OnNext(value)
		}
		e.OnComplete()
	})
}

// FromItemChannel 转发通道中的信号，遇到终止信号或通道关闭时结束
func FromItemChannel(ch <-chan Item) *Observable {
	return newObservable(func(e *emitter) {
		for item := range ch {
			if e.IsDisposed() {
				return
			}
			e.Emit(item)
			if item.IsTerminal() {
				return
			}
		}
		e.OnComplete()
	})
}

// Create 每次订阅调用一次generator。只有第一次终止调用生效，生成器中的panic转换为错误
func Create(generator func(emitter Emitter)) *Observable {
	return newObservable(func(e *emitter) {
		generator(e)
	})
}

// Defer 每次订阅时才创建实际的Observable
func Defer(factory func() *Observable) *Observable {
	return newObservable(func(e *emitter) {
		o := factory()
		if o == nil {
			e.OnError(ErrNilStream)
			return
		}
		o.source(e)
	})
}

// ============================================================================
// 时间相关工厂函数
// ============================================================================

// IntervalRange 在initialDelay后发射start，之后每隔period发射下一个整数，共count个后完成
func IntervalRange(start, count int, initialDelay, period time.Duration, opts ...Option) *Observable {
	o := buildOptions(opts)
	return newObservable(func(e *emitter) {
		if count <= 0 {
			e.OnComplete()
			return
		}
		next, emitted := start, 0
		handle := startPeriodic(o.scheduler, func(handle Disposable) {
			if e.IsDisposed() {
				handle.Dispose()
				return
			}
			value := next
			next++
			emitted++
			e.OnNext(value)
			if emitted == count {
				handle.Dispose()
				e.OnComplete()
			}
		}, initialDelay, period)
		e.SetDisposable(handle)
	})
}

// Interval 每隔period发射递增的整数，从0开始，直到取消
func Interval(period time.Duration, opts ...Option) *Observable {
	o := buildOptions(opts)
	return newObservable(func(e *emitter) {
		var counter int
		handle := startPeriodic(o.scheduler, func(handle Disposable) {
			if e.IsDisposed() {
				handle.Dispose()
				return
			}
			value := counter
			counter++
			e.OnNext(value)
		}, period, period)
		e.SetDisposable(handle)
	})
}

// Timer 延迟delay后发射0并完成
func Timer(delay time.Duration, opts ...Option) *Observable {
	o := buildOptions(opts)
	return newObservable(func(e *emitter) {
		task := o.scheduler.ScheduleWithDelay(func() {
			e.OnNext(0)
			e.OnComplete()
		}, delay)
		e.SetDisposable(task)
	})
}
