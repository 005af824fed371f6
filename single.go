// Single implementation for rxcore
// 恰好一个值的流：没有值的完成被视为ErrNoSuchElement
package rxcore

// Single 发射恰好一个值或以错误终止
type Single struct {
	source func(e *emitter)
}

func newSingle(source func(e *emitter)) *Single {
	return &Single{source: source}
}

// Subscribe 订阅观察者，结果以SignalNext投递
func (s *Single) Subscribe(observer Observer) Disposable {
	if observer == nil {
		observer = callbackObserver(nil, nil, nil)
	}
	e := newEmitter(kindSingle, observer)
	subscribeSource(s.source, e)
	return e
}

// SubscribeWithCallbacks 使用回调订阅
func (s *Single) SubscribeWithCallbacks(onSuccess OnSuccess, onError OnError) Disposable {
	return s.Subscribe(callbackObserver(OnNext(onSuccess), onError, nil))
}

// Map 转换结果值
func (s *Single) Map(fn Transformer) *Single {
	return newSingle(mapSource(kindSingle, s.source, fn))
}

// Filter 结果不满足谓词时得到空Maybe
func (s *Single) Filter(predicate Predicate) *Maybe {
	return newMaybe(filterSource(kindSingle, s.source, predicate, completeDown))
}

// FlatMap 用结果创建下一个Single
func (s *Single) FlatMap(fn func(value interface{}) *Single) *Single {
	return newSingle(func(down *emitter) {
		up := newEmitter(kindSingle, func(item Item) {
			if item.Kind != SignalNext {
				down.Emit(item)
				return
			}
			var next *Single
			if err := invokeSafely(func() { next = fn(item.Value) }); err != nil {
				down.OnError(err)
				return
			}
			if next == nil {
				down.OnError(ErrNilStream)
				return
			}
			subscribeSource(next.source, down)
		})
		down.SetDisposable(up)
		subscribeSource(s.source, up)
	})
}

// DoOnSuccess 结果到达下游之前执行action
func (s *Single) DoOnSuccess(action func(value interface{})) *Single {
	return newSingle(doOnSource(kindSingle, s.source, SignalNext, func(item Item) {
		action(item.Value)
	}))
}

// DoOnError 错误到达下游之前执行action
func (s *Single) DoOnError(action func(err error)) *Single {
	return newSingle(doOnSource(kindSingle, s.source, SignalError, func(item Item) {
		action(item.Error)
	}))
}

// SubscribeOn 订阅动作在scheduler上执行
func (s *Single) SubscribeOn(scheduler Scheduler) *Single {
	return newSingle(subscribeOnSource(s.source, scheduler))
}

// ObserveOn 结果在scheduler上投递
func (s *Single) ObserveOn(scheduler Scheduler) *Single {
	return newSingle(observeOnSource(kindSingle, s.source, scheduler))
}

// ToObservable 值之后补发完成信号
func (s *Single) ToObservable() *Observable {
	return newObservable(toMultiSource(kindSingle, s.source))
}

// ToMaybe 转换为Maybe
func (s *Single) ToMaybe() *Maybe {
	return newMaybe(liftSource(kindSingle, s.source, func(down *emitter) Observer {
		return down.Emit
	}))
}

// SingleTransformer 可复用的Single算子链
type SingleTransformer func(upstream *Single) *Single

// Compose 应用一个算子链
func (s *Single) Compose(transformer SingleTransformer) *Single {
	if transformer == nil {
		return s
	}
	return transformer(s)
}

// ============================================================================
// 工厂函数
// ============================================================================

// SingleCreate 使用生成器创建Single，只有第一次OnSuccess/OnError生效
func SingleCreate(generator func(emitter SingleEmitter)) *Single {
	return newSingle(func(e *emitter) {
		generator(e)
	})
}

// SingleJust 以value作为结果
func SingleJust(value interface{}) *Single {
	return newSingle(func(e *emitter) {
		e.OnSuccess(value)
	})
}

// SingleError 以错误终止
func SingleError(err error) *Single {
	return newSingle(func(e *emitter) {
		e.OnError(err)
	})
}

// SingleFromCallable 每次订阅调用fn，返回值作为结果
func SingleFromCallable(fn func() (interface{}, error)) *Single {
	return newSingle(func(e *emitter) {
		value, err := fn()
		if err != nil {
			e.OnError(err)
			return
		}
		e.OnSuccess(value)
	})
}
