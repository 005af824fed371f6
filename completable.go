// Completable implementation for rxcore
// 只有终止信号的流
package rxcore

// Completable 完成或以错误终止，不发射值
type Completable struct {
	source func(e *emitter)
}

func newCompletable(source func(e *emitter)) *Completable {
	return &Completable{source: source}
}

// Subscribe 订阅观察者，只会收到终止信号
func (c *Completable) Subscribe(observer Observer) Disposable {
	if observer == nil {
		observer = callbackObserver(nil, nil, nil)
	}
	e := newEmitter(kindCompletable, observer)
	subscribeSource(c.source, e)
	return e
}

// SubscribeWithCallbacks 使用回调订阅
func (c *Completable) SubscribeWithCallbacks(onComplete OnComplete, onError OnError) Disposable {
	return c.Subscribe(callbackObserver(nil, onError, onComplete))
}

// AndThen 完成后订阅next，错误时不再订阅
func (c *Completable) AndThen(next *Completable) *Completable {
	if next == nil {
		return c
	}
	return newCompletable(func(down *emitter) {
		first := newEmitter(kindCompletable, func(item Item) {
			if item.IsError() {
				down.Emit(item)
				return
			}
			subscribeSource(next.source, down)
		})
		down.SetDisposable(first)
		subscribeSource(c.source, first)
	})
}

// DoOnComplete 完成到达下游之前执行action
func (c *Completable) DoOnComplete(action func()) *Completable {
	return newCompletable(doOnSource(kindCompletable, c.source, SignalComplete, func(Item) {
		action()
	}))
}

// SubscribeOn 订阅动作在scheduler上执行
func (c *Completable) SubscribeOn(scheduler Scheduler) *Completable {
	return newCompletable(subscribeOnSource(c.source, scheduler))
}

// ObserveOn 终止信号在scheduler上投递
func (c *Completable) ObserveOn(scheduler Scheduler) *Completable {
	return newCompletable(observeOnSource(kindCompletable, c.source, scheduler))
}

// ToObservable 转换为没有值的Observable
func (c *Completable) ToObservable() *Observable {
	return newObservable(liftSource(kindCompletable, c.source, func(down *emitter) Observer {
		return down.Emit
	}))
}

// CompletableTransformer 可复用的Completable算子链
type CompletableTransformer func(upstream *Completable) *Completable

// Compose 应用一个算子链
func (c *Completable) Compose(transformer CompletableTransformer) *Completable {
	if transformer == nil {
		return c
	}
	return transformer(c)
}

// ============================================================================
// 工厂函数
// ============================================================================

// CompletableCreate 使用生成器创建Completable，只有第一次终止调用生效
func CompletableCreate(generator func(emitter CompletableEmitter)) *Completable {
	return newCompletable(func(e *emitter) {
		generator(e)
	})
}

// CompletableComplete 立即完成
func CompletableComplete() *Completable {
	return newCompletable(func(e *emitter) {
		e.OnComplete()
	})
}

// CompletableError 以错误终止
func CompletableError(err error) *Completable {
	return newCompletable(func(e *emitter) {
		e.OnError(err)
	})
}

// CompletableFromAction 每次订阅执行action，返回错误时以错误终止
func CompletableFromAction(action func() error) *Completable {
	return newCompletable(func(e *emitter) {
		if err := action(); err != nil {
			e.OnError(err)
			return
		}
		e.OnComplete()
	})
}

// IgnoreElements 忽略所有值，只保留终止信号
func (o *Observable) IgnoreElements() *Completable {
	return newCompletable(liftSource(kindObservable, o.source, func(down *emitter) Observer {
		return func(item Item) {
			if item.IsTerminal() {
				down.Emit(item)
			}
		}
	}))
}
