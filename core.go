// Package rxcore provides reactive-stream primitives for Go
// 响应式流执行内核：信号协议、背压、调度器、资源释放与多播
package rxcore

import (
	"fmt"
)

// ============================================================================
// 信号定义
// ============================================================================

// SignalKind 信号类型
type SignalKind int

const (
	// SignalNext 数据信号
	SignalNext SignalKind = iota
	// SignalError 错误信号（终止）
	SignalError
	// SignalComplete 完成信号（终止）
	SignalComplete
)

// String 返回信号名称
func (k SignalKind) String() string {
	switch k {
	case SignalNext:
		return "next"
	case SignalError:
		return "error"
	case SignalComplete:
		return "complete"
	default:
		return fmt.Sprintf("signal(%d)", int(k))
	}
}

// Item 表示流中的一个信号。完成由Kind表示，Value允许为nil
type Item struct {
	Kind  SignalKind  // 信号类型
	Value interface{} // 数据值
	Error error       // 错误信息
}

// IsError 检查是否为错误信号
func (item Item) IsError() bool {
	return item.Kind == SignalError
}

// IsComplete 检查是否为完成信号
func (item Item) IsComplete() bool {
	return item.Kind == SignalComplete
}

// IsTerminal 检查是否为终止信号
func (item Item) IsTerminal() bool {
	return item.Kind != SignalNext
}

// CreateItem 创建数据信号
func CreateItem(value interface{}) Item {
	return Item{Kind: SignalNext, Value: value}
}

// CreateErrorItem 创建错误信号
func CreateErrorItem(err error) Item {
	return Item{Kind: SignalError, Error: err}
}

// CreateCompleteItem 创建完成信号
func CreateCompleteItem() Item {
	return Item{Kind: SignalComplete}
}

// ============================================================================
// 函数类型定义
// ============================================================================

// Observer 观察者函数类型，按顺序接收信号
type Observer func(item Item)

// OnNext 处理下一个值的函数
type OnNext func(value interface{})

// OnSuccess 处理单值结果的函数
type OnSuccess func(value interface{})

// OnError 处理错误的函数
type OnError func(err error)

// OnComplete 处理完成的函数
type OnComplete func()

// Predicate 谓词函数，用于过滤
type Predicate func(value interface{}) bool

// Transformer 转换函数，用于映射
type Transformer func(value interface{}) (interface{}, error)

// callbackObserver 把回调组合成Observer，没有错误回调时交给全局钩子
func callbackObserver(onNext OnNext, onError OnError, onComplete OnComplete) Observer {
	return func(item Item) {
		switch item.Kind {
		case SignalNext:
			if onNext != nil {
				onNext(item.Value)
			}
		case SignalError:
			if onError != nil {
				onError(item.Error)
			} else {
				ReportUnhandled(NewOnErrorNotImplementedError(item.Error))
			}
		case SignalComplete:
			if onComplete != nil {
				onComplete()
			}
		}
	}
}

// applyTransformer 执行转换函数，panic转换为错误
func applyTransformer(fn Transformer, value interface{}) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewPanicError(r)
		}
	}()
	return fn(value)
}

// applyPredicate 执行谓词函数，panic转换为错误
func applyPredicate(fn Predicate, value interface{}) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewPanicError(r)
		}
	}()
	return fn(value), nil
}

// ============================================================================
// 配置选项
// ============================================================================

// Option 工厂函数的配置选项
type Option interface {
	apply(opts *options)
}

// defaultBufferSize 通道类算子的默认缓冲区大小
const defaultBufferSize = 16

type options struct {
	scheduler  Scheduler
	bufferSize int
}

type optionFunc func(opts *options)

func (f optionFunc) apply(opts *options) { f(opts) }

// WithScheduler 指定时间类工厂使用的调度器
func WithScheduler(scheduler Scheduler) Option {
	return optionFunc(func(opts *options) {
		opts.scheduler = scheduler
	})
}

// WithBufferSize 指定通道缓冲区大小
func WithBufferSize(size int) Option {
	return optionFunc(func(opts *options) {
		if size >= 0 {
			opts.bufferSize = size
		}
	})
}

func buildOptions(opts []Option) *options {
	o := &options{bufferSize: defaultBufferSize}
	for _, opt := range opts {
		opt.apply(o)
	}
	if o.scheduler == nil {
		o.scheduler = DefaultRegistry().Computation()
	}
	return o
}
