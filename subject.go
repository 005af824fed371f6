// Subject implementation for rxcore
// PublishSubject：热流多播，订阅者只收到订阅之后的信号
package rxcore

import (
	"sync"

	"github.com/google/uuid"
)

// subjectObserver 一个订阅者，id用于移除与诊断日志
type subjectObserver struct {
	id uuid.UUID
	e  *emitter
}

// PublishSubject 同时作为观察者与Observable。
// 信号按调用顺序串行分发，一个信号分发给所有当前订阅者之后才处理下一个
type PublishSubject struct {
	mu        sync.Mutex
	observers []subjectObserver
	terminal  *Item

	emitMu   sync.Mutex
	queue    []Item
	emitting bool
	done     bool
}

// NewPublishSubject 创建发布主题
func NewPublishSubject() *PublishSubject {
	return &PublishSubject{}
}

// OnNext 向所有当前订阅者发射一个值
func (ps *PublishSubject) OnNext(value interface{}) {
	ps.Emit(CreateItem(value))
}

// OnError 以错误终止所有订阅者
func (ps *PublishSubject) OnError(err error) {
	ps.Emit(CreateErrorItem(err))
}

// OnComplete 正常终止所有订阅者
func (ps *PublishSubject) OnComplete() {
	ps.Emit(CreateCompleteItem())
}

// Emit 分发一个信号。并发或重入的调用排队后按顺序分发
func (ps *PublishSubject) Emit(item Item) {
	if item.IsError() && item.Error == nil {
		item.Error = ErrNullError
	}

	ps.emitMu.Lock()
	if ps.done {
		ps.emitMu.Unlock()
		Logger().Debug().Str("signal", item.Kind.String()).Msg("subject already terminated, signal dropped")
		return
	}
	if item.IsTerminal() {
		ps.done = true
	}
	if ps.emitting {
		ps.queue = append(ps.queue, item)
		ps.emitMu.Unlock()
		return
	}
	ps.emitting = true
	ps.emitMu.Unlock()

	for {
		ps.fanOut(item)

		ps.emitMu.Lock()
		if len(ps.queue) == 0 {
			ps.emitting = false
			ps.emitMu.Unlock()
			return
		}
		item = ps.queue[0]
		ps.queue[0] = Item{}
		ps.queue = ps.queue[1:]
		ps.emitMu.Unlock()
	}
}

// fanOut 按注册顺序投递给当前订阅者快照
func (ps *PublishSubject) fanOut(item Item) {
	ps.mu.Lock()
	observers := ps.observers
	if item.IsTerminal() {
		ps.terminal = &item
		ps.observers = nil
	}
	ps.mu.Unlock()

	for _, o := range observers {
		o.e.Emit(item)
	}
}

// Subscribe 注册观察者。主题已终止时立即收到终止信号
func (ps *PublishSubject) Subscribe(observer Observer) Disposable {
	if observer == nil {
		observer = callbackObserver(nil, nil, nil)
	}
	e := newEmitter(kindObservable, observer)
	ps.add(e)
	return e
}

// SubscribeWithCallbacks 使用回调注册
func (ps *PublishSubject) SubscribeWithCallbacks(onNext OnNext, onError OnError, onComplete OnComplete) Disposable {
	return ps.Subscribe(callbackObserver(onNext, onError, onComplete))
}

func (ps *PublishSubject) add(e *emitter) {
	ps.mu.Lock()
	if ps.terminal != nil {
		terminal := *ps.terminal
		ps.mu.Unlock()
		e.Emit(terminal)
		return
	}
	id := uuid.New()
	// 复制后追加，分发中的快照不受影响
	observers := make([]subjectObserver, len(ps.observers), len(ps.observers)+1)
	copy(observers, ps.observers)
	ps.observers = append(observers, subjectObserver{id: id, e: e})
	count := len(ps.observers)
	ps.mu.Unlock()

	Logger().Debug().Str("subscriber", id.String()).Int("observers", count).Msg("subject subscriber added")
	e.SetDisposable(NewDisposable(func() { ps.remove(id) }))
}

func (ps *PublishSubject) remove(id uuid.UUID) {
	ps.mu.Lock()
	observers := make([]subjectObserver, 0, len(ps.observers))
	for _, o := range ps.observers {
		if o.id != id {
			observers = append(observers, o)
		}
	}
	removed := len(observers) != len(ps.observers)
	ps.observers = observers
	ps.mu.Unlock()

	if removed {
		Logger().Debug().Str("subscriber", id.String()).Msg("subject subscriber removed")
	}
}

// AsObservable 只暴露订阅能力
func (ps *PublishSubject) AsObservable() *Observable {
	return newObservable(ps.add)
}

// AsObserver 只暴露发射能力
func (ps *PublishSubject) AsObserver() Observer {
	return ps.Emit
}

// HasObservers 是否有订阅者
func (ps *PublishSubject) HasObservers() bool {
	return ps.ObserverCount() > 0
}

// ObserverCount 当前订阅者数量
func (ps *PublishSubject) ObserverCount() int {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return len(ps.observers)
}

// IsTerminated 是否已收到终止信号
func (ps *PublishSubject) IsTerminated() bool {
	ps.emitMu.Lock()
	defer ps.emitMu.Unlock()
	return ps.done
}
