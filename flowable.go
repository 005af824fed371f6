// Flowable implementation for rxcore
// 支持背压的多值流：背压在消费端的订阅上按策略处理
package rxcore

import (
	"math"
	"sync"
	"sync/atomic"
)

// ============================================================================
// 背压策略
// ============================================================================

// BackpressureStrategy 生产者快于请求量时的处理策略
type BackpressureStrategy int

const (
	// BackpressureBuffer 缓冲所有未请求的值（默认，无界）
	BackpressureBuffer BackpressureStrategy = iota
	// BackpressureDrop 没有请求量时丢弃新值
	BackpressureDrop
	// BackpressureLatest 没有请求量时只保留最新的值
	BackpressureLatest
	// BackpressureError 没有请求量时以ErrMissingBackpressure终止
	BackpressureError
)

func (s BackpressureStrategy) String() string {
	switch s {
	case BackpressureBuffer:
		return "buffer"
	case BackpressureDrop:
		return "drop"
	case BackpressureLatest:
		return "latest"
	case BackpressureError:
		return "error"
	default:
		return "unknown"
	}
}

// BackpressureOverflowStrategy 有界缓冲区溢出策略
type BackpressureOverflowStrategy int

const (
	// OnOverflowError 溢出时以ErrBufferOverflow终止（默认）
	OnOverflowError BackpressureOverflowStrategy = iota
	// OnOverflowDropLatest 丢弃缓冲区中最新的值，再放入新值
	OnOverflowDropLatest
	// OnOverflowDropOldest 丢弃缓冲区中最旧的值，再放入新值
	OnOverflowDropOldest
)

// backpressure 一个Flowable的背压配置，capacity为0表示无界
type backpressure struct {
	strategy BackpressureStrategy
	capacity int
	overflow BackpressureOverflowStrategy
}

// ============================================================================
// 订阅者接口
// ============================================================================

// Subscription 订阅者与Flowable之间的请求通道
type Subscription interface {
	// Request 请求n个值，n必须为正数
	Request(n int64)
	// Cancel 取消订阅
	Cancel()
}

// Subscriber Flowable的订阅者
type Subscriber interface {
	// OnSubscribe 在源开始发射之前调用
	OnSubscribe(subscription Subscription)
	// OnNext 接收一个值，不会超过已请求的数量
	OnNext(value interface{})
	// OnError 以错误终止
	OnError(err error)
	// OnComplete 正常终止
	OnComplete()
}

// SubscriberFuncs 由回调函数组成的Subscriber，nil回调会被忽略
type SubscriberFuncs struct {
	Subscribe func(subscription Subscription)
	Next      func(value interface{})
	Error     func(err error)
	Complete  func()
}

// OnSubscribe 实现Subscriber
func (s SubscriberFuncs) OnSubscribe(subscription Subscription) {
	if s.Subscribe != nil {
		s.Subscribe(subscription)
	}
}

// OnNext 实现Subscriber
func (s SubscriberFuncs) OnNext(value interface{}) {
	if s.Next != nil {
		s.Next(value)
	}
}

// OnError 实现Subscriber，没有错误回调时交给全局钩子
func (s SubscriberFuncs) OnError(err error) {
	if s.Error != nil {
		s.Error(err)
		return
	}
	ReportUnhandled(NewOnErrorNotImplementedError(err))
}

// OnComplete 实现Subscriber
func (s SubscriberFuncs) OnComplete() {
	if s.Complete != nil {
		s.Complete()
	}
}

// ============================================================================
// Flowable
// ============================================================================

// Flowable 支持背压的多值冷流
type Flowable struct {
	source func(e *emitter)
	bp     backpressure
}

func newFlowable(source func(e *emitter), bp backpressure) *Flowable {
	return &Flowable{source: source, bp: bp}
}

// with 沿用当前背压配置包装新的源
func (f *Flowable) with(source func(e *emitter)) *Flowable {
	return newFlowable(source, f.bp)
}

// Subscribe 订阅Subscriber。OnSubscribe在源开始之前调用，返回值可用于取消
func (f *Flowable) Subscribe(subscriber Subscriber) Disposable {
	s := newFlowableSubscription(subscriber, f.bp)
	up := newEmitter(kindFlowable, s.onItem)
	up.demand = s.outstanding
	s.upstream = up

	if err := invokeSafely(func() { subscriber.OnSubscribe(s) }); err != nil {
		s.Cancel()
		ReportUnhandled(err)
		return s
	}
	if s.IsDisposed() {
		return s
	}
	subscribeSource(f.source, up)
	return s
}

// SubscribeWithCallbacks 请求无限数量并使用回调订阅
func (f *Flowable) SubscribeWithCallbacks(onNext OnNext, onError OnError, onComplete OnComplete) Disposable {
	return f.Subscribe(SubscriberFuncs{
		Subscribe: func(subscription Subscription) { subscription.Request(math.MaxInt64) },
		Next:      onNext,
		Error:     onError,
		Complete:  onComplete,
	})
}

// OnBackpressureBuffer 无界缓冲未请求的值
func (f *Flowable) OnBackpressureBuffer() *Flowable {
	return newFlowable(f.source, backpressure{strategy: BackpressureBuffer})
}

// OnBackpressureBufferWithCapacity 最多缓冲capacity个值，溢出时按overflow处理
func (f *Flowable) OnBackpressureBufferWithCapacity(capacity int, overflow BackpressureOverflowStrategy) *Flowable {
	if capacity <= 0 {
		return f.OnBackpressureBuffer()
	}
	return newFlowable(f.source, backpressure{strategy: BackpressureBuffer, capacity: capacity, overflow: overflow})
}

// OnBackpressureDrop 没有请求量时丢弃
func (f *Flowable) OnBackpressureDrop() *Flowable {
	return newFlowable(f.source, backpressure{strategy: BackpressureDrop})
}

// OnBackpressureLatest 没有请求量时只保留最新值
func (f *Flowable) OnBackpressureLatest() *Flowable {
	return newFlowable(f.source, backpressure{strategy: BackpressureLatest})
}

// Map 转换每个值
func (f *Flowable) Map(fn Transformer) *Flowable {
	return f.with(mapSource(kindFlowable, f.source, fn))
}

// Filter 只保留满足谓词的值
func (f *Flowable) Filter(predicate Predicate) *Flowable {
	return f.with(filterSource(kindFlowable, f.source, predicate, nil))
}

// Take 只发射前count个值
func (f *Flowable) Take(count int) *Flowable {
	return f.with(takeSource(kindFlowable, f.source, count))
}

// SubscribeOn 订阅动作在scheduler上执行
func (f *Flowable) SubscribeOn(scheduler Scheduler) *Flowable {
	return f.with(subscribeOnSource(f.source, scheduler))
}

// ObserveOn 信号在scheduler上投递
func (f *Flowable) ObserveOn(scheduler Scheduler) *Flowable {
	return f.with(observeOnSource(kindFlowable, f.source, scheduler))
}

// FlowableTransformer 可复用的Flowable算子链
type FlowableTransformer func(upstream *Flowable) *Flowable

// Compose 应用一个算子链
func (f *Flowable) Compose(transformer FlowableTransformer) *Flowable {
	if transformer == nil {
		return f
	}
	return transformer(f)
}

// ToObservable 转换为不限请求量的Observable
func (f *Flowable) ToObservable() *Observable {
	return newObservable(f.source)
}

// ToFlowable 按给定策略转换为Flowable
func (o *Observable) ToFlowable(strategy BackpressureStrategy) *Flowable {
	return newFlowable(o.source, backpressure{strategy: strategy})
}

// ============================================================================
// 订阅
// ============================================================================

// flowableSubscription 消费端的请求计数与待投递队列
type flowableSubscription struct {
	subscriber Subscriber
	bp         backpressure
	upstream   *emitter

	mu        sync.Mutex
	queue     []interface{}
	latest    *interface{}
	requested int64
	terminal  *Item
	emitting  bool
	done      bool

	cancelled int32
}

func newFlowableSubscription(subscriber Subscriber, bp backpressure) *flowableSubscription {
	return &flowableSubscription{subscriber: subscriber, bp: bp}
}

// Request 增加请求量，溢出时视为无限
func (s *flowableSubscription) Request(n int64) {
	if atomic.LoadInt32(&s.cancelled) == 1 {
		return
	}
	if n <= 0 {
		s.fail(ErrInvalidRequest)
		return
	}
	s.mu.Lock()
	if s.requested > math.MaxInt64-n {
		s.requested = math.MaxInt64
	} else {
		s.requested += n
	}
	s.mu.Unlock()
	s.drain()
}

// Cancel 取消订阅并停止上游
func (s *flowableSubscription) Cancel() {
	if !atomic.CompareAndSwapInt32(&s.cancelled, 0, 1) {
		return
	}
	s.mu.Lock()
	s.queue = nil
	s.latest = nil
	s.mu.Unlock()
	if s.upstream != nil {
		s.upstream.Dispose()
	}
}

// Dispose 同Cancel
func (s *flowableSubscription) Dispose() {
	s.Cancel()
}

// IsDisposed 已取消或终止信号已投递
func (s *flowableSubscription) IsDisposed() bool {
	if atomic.LoadInt32(&s.cancelled) == 1 {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// outstanding 尚可接收的数量，供FlowableEmitter.Requested使用
func (s *flowableSubscription) outstanding() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.requested == math.MaxInt64 {
		return math.MaxInt64
	}
	r := s.requested - int64(len(s.queue))
	if r < 0 {
		return 0
	}
	return r
}

// onItem 接收上游信号，由上游emitter串行调用
func (s *flowableSubscription) onItem(item Item) {
	if atomic.LoadInt32(&s.cancelled) == 1 {
		return
	}
	if item.IsTerminal() {
		s.mu.Lock()
		if s.terminal == nil {
			s.terminal = &item
		}
		s.mu.Unlock()
		s.drain()
		return
	}

	s.mu.Lock()
	err := s.offer(item.Value)
	s.mu.Unlock()
	if err != nil {
		s.fail(err)
		return
	}
	s.drain()
}

// offer 按策略放入队列，调用者持有锁
func (s *flowableSubscription) offer(value interface{}) error {
	unbounded := s.requested == math.MaxInt64
	free := unbounded || s.requested-int64(len(s.queue)) > 0

	switch s.bp.strategy {
	case BackpressureDrop:
		if free {
			s.queue = append(s.queue, value)
		} else {
			Logger().Trace().Msg("flowable value dropped")
		}
	case BackpressureLatest:
		if free {
			s.queue = append(s.queue, value)
		} else {
			s.latest = &value
		}
	case BackpressureError:
		if !free {
			return ErrMissingBackpressure
		}
		s.queue = append(s.queue, value)
	default:
		if s.bp.capacity > 0 && !unbounded {
			buffered := int64(len(s.queue)) - s.requested
			if buffered >= int64(s.bp.capacity) {
				switch s.bp.overflow {
				case OnOverflowDropLatest:
					s.queue[len(s.queue)-1] = value
				case OnOverflowDropOldest:
					oldest := 0
					if s.requested > 0 {
						oldest = int(s.requested)
					}
					copy(s.queue[oldest:], s.queue[oldest+1:])
					s.queue[len(s.queue)-1] = value
				default:
					return ErrBufferOverflow
				}
				return nil
			}
		}
		s.queue = append(s.queue, value)
	}
	return nil
}

// fail 丢弃队列，立即投递错误并取消上游
func (s *flowableSubscription) fail(err error) {
	s.mu.Lock()
	s.queue = nil
	s.latest = nil
	if s.terminal == nil || s.terminal.Kind != SignalError {
		item := CreateErrorItem(err)
		s.terminal = &item
	}
	s.mu.Unlock()
	if s.upstream != nil {
		s.upstream.Dispose()
	}
	s.drain()
}

// drain 在请求量范围内投递，终止信号在队列清空后投递
func (s *flowableSubscription) drain() {
	s.mu.Lock()
	if s.emitting || s.done {
		s.mu.Unlock()
		return
	}
	s.emitting = true

	for {
		if atomic.LoadInt32(&s.cancelled) == 1 {
			s.emitting = false
			s.mu.Unlock()
			return
		}

		var value interface{}
		ready := false
		if s.requested > 0 {
			if len(s.queue) > 0 {
				value = s.queue[0]
				s.queue[0] = nil
				s.queue = s.queue[1:]
				ready = true
			} else if s.latest != nil {
				value = *s.latest
				s.latest = nil
				ready = true
			}
		}

		if ready {
			if s.requested != math.MaxInt64 {
				s.requested--
			}
			s.mu.Unlock()
			if !s.deliver(func() { s.subscriber.OnNext(value) }) {
				return
			}
			s.mu.Lock()
			continue
		}

		if s.terminal != nil && len(s.queue) == 0 && s.latest == nil {
			terminal := *s.terminal
			s.done = true
			s.mu.Unlock()
			s.deliver(func() {
				if terminal.IsError() {
					s.subscriber.OnError(terminal.Error)
				} else {
					s.subscriber.OnComplete()
				}
			})
			return
		}

		s.emitting = false
		s.mu.Unlock()
		return
	}
}

// deliver 调用订阅者，panic时取消订阅并交给全局钩子
func (s *flowableSubscription) deliver(call func()) bool {
	if err := invokeSafely(call); err != nil {
		s.mu.Lock()
		s.done = true
		s.mu.Unlock()
		s.Cancel()
		ReportUnhandled(err)
		return false
	}
	return true
}

// ============================================================================
// 工厂函数
// ============================================================================

// FlowableCreate 使用生成器创建Flowable，生成器可通过Requested查询下游需求
func FlowableCreate(generator func(emitter FlowableEmitter), strategy BackpressureStrategy) *Flowable {
	return newFlowable(func(e *emitter) {
		generator(e)
	}, backpressure{strategy: strategy})
}

// FlowableFromSequence 按顺序发射切片元素，未请求的值被缓冲
func FlowableFromSequence(items []interface{}) *Flowable {
	return FromSequence(items).ToFlowable(BackpressureBuffer)
}

// FlowableJust 依次发射给定的值
func FlowableJust(values ...interface{}) *Flowable {
	return FlowableFromSequence(values)
}

// FlowableRange 发射[start, start+count)区间的整数
func FlowableRange(start, count int) *Flowable {
	return Range(start, count).ToFlowable(BackpressureBuffer)
}
