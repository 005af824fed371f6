// Error types for rxcore
// 错误定义与全局未处理错误钩子
package rxcore

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"
)

var (
	// ErrNoSuchElement 期望一个值但流为空
	ErrNoSuchElement = errors.New("rxcore: no such element")
	// ErrNullError OnError收到nil错误
	ErrNullError = errors.New("rxcore: OnError called with a nil error")
	// ErrMissingBackpressure 没有请求量时收到数据
	ErrMissingBackpressure = errors.New("rxcore: could not emit value due to lack of requests")
	// ErrBufferOverflow 背压缓冲区溢出
	ErrBufferOverflow = errors.New("rxcore: backpressure buffer overflow")
	// ErrInvalidRequest 请求量必须为正数
	ErrInvalidRequest = errors.New("rxcore: request amount must be positive")
	// ErrSchedulerShutdown 调度器已关闭
	ErrSchedulerShutdown = errors.New("rxcore: scheduler is shut down")
	// ErrUnknownScheduler 注册表中没有该调度器
	ErrUnknownScheduler = errors.New("rxcore: unknown scheduler")
	// ErrNilStream 映射函数返回了nil流
	ErrNilStream = errors.New("rxcore: mapper returned a nil stream")
)

// PanicError 包装回调或生成器中恢复的panic
type PanicError struct {
	Value interface{}
	Stack []byte
}

// NewPanicError 从recover的值创建错误
func NewPanicError(value interface{}) *PanicError {
	return &PanicError{Value: value, Stack: debug.Stack()}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("rxcore: recovered panic: %v", e.Value)
}

// Unwrap 如果panic的值本身是error则返回它
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// OnErrorNotImplementedError 订阅者没有提供错误回调
type OnErrorNotImplementedError struct {
	Cause error
}

// NewOnErrorNotImplementedError 创建错误
func NewOnErrorNotImplementedError(cause error) *OnErrorNotImplementedError {
	return &OnErrorNotImplementedError{Cause: cause}
}

func (e *OnErrorNotImplementedError) Error() string {
	return fmt.Sprintf("rxcore: error not handled by subscriber: %v", e.Cause)
}

func (e *OnErrorNotImplementedError) Unwrap() error {
	return e.Cause
}

// ProtocolViolationError 描述违反发射协议的调用，只用于诊断日志
type ProtocolViolationError struct {
	Stream string
	Signal SignalKind
	Reason string
}

// NewProtocolViolationError 创建协议违规诊断
func NewProtocolViolationError(stream string, signal SignalKind, reason string) *ProtocolViolationError {
	return &ProtocolViolationError{Stream: stream, Signal: signal, Reason: reason}
}

func (e *ProtocolViolationError) Error() string {
	return fmt.Sprintf("rxcore: %s received %s: %s", e.Stream, e.Signal, e.Reason)
}

// CompositeError 多个错误同时发生，例如错误回调自身又失败
type CompositeError struct {
	Errors []error
}

// NewCompositeError 创建组合错误，忽略nil
func NewCompositeError(errs ...error) *CompositeError {
	ce := &CompositeError{}
	for _, err := range errs {
		if err != nil {
			ce.Errors = append(ce.Errors, err)
		}
	}
	return ce
}

func (e *CompositeError) Error() string {
	return fmt.Sprintf("rxcore: %d errors occurred: %v", len(e.Errors), errors.Join(e.Errors...))
}

// Unwrap 支持errors.Is/As匹配任意一个内部错误
func (e *CompositeError) Unwrap() []error {
	return e.Errors
}

// ============================================================================
// 未处理错误钩子
// ============================================================================

var errorHandler atomic.Pointer[func(error)]

// SetErrorHandler 设置全局未处理错误钩子，传nil恢复默认行为。返回之前的钩子
func SetErrorHandler(handler func(error)) func(error) {
	var previous *func(error)
	if handler == nil {
		previous = errorHandler.Swap(nil)
	} else {
		previous = errorHandler.Swap(&handler)
	}
	if previous == nil {
		return nil
	}
	return *previous
}

// ReportUnhandled 把无法投递的错误交给全局钩子，默认写入错误日志
func ReportUnhandled(err error) {
	if err == nil {
		return
	}
	if handler := errorHandler.Load(); handler != nil {
		(*handler)(err)
		return
	}
	Logger().Error().Err(err).Msg("unhandled stream error")
}
