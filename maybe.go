// Maybe implementation for rxcore
// 0或1个值的流：值本身即是终止信号
package rxcore

// Maybe 发射一个值、直接完成或以错误终止
type Maybe struct {
	source func(e *emitter)
}

func newMaybe(source func(e *emitter)) *Maybe {
	return &Maybe{source: source}
}

// Subscribe 订阅观察者，值以SignalNext投递，之后不再有完成信号
func (m *Maybe) Subscribe(observer Observer) Disposable {
	if observer == nil {
		observer = callbackObserver(nil, nil, nil)
	}
	e := newEmitter(kindMaybe, observer)
	subscribeSource(m.source, e)
	return e
}

// SubscribeWithCallbacks 使用回调订阅，三个回调中最多调用一个
func (m *Maybe) SubscribeWithCallbacks(onSuccess OnSuccess, onError OnError, onComplete OnComplete) Disposable {
	return m.Subscribe(callbackObserver(OnNext(onSuccess), onError, onComplete))
}

// Map 转换结果值
func (m *Maybe) Map(fn Transformer) *Maybe {
	return newMaybe(mapSource(kindMaybe, m.source, fn))
}

// Filter 结果不满足谓词时直接完成
func (m *Maybe) Filter(predicate Predicate) *Maybe {
	return newMaybe(filterSource(kindMaybe, m.source, predicate, completeDown))
}

// SubscribeOn 订阅动作在scheduler上执行
func (m *Maybe) SubscribeOn(scheduler Scheduler) *Maybe {
	return newMaybe(subscribeOnSource(m.source, scheduler))
}

// ObserveOn 结果在scheduler上投递
func (m *Maybe) ObserveOn(scheduler Scheduler) *Maybe {
	return newMaybe(observeOnSource(kindMaybe, m.source, scheduler))
}

// DefaultIfEmpty 为空时以value作为结果
func (m *Maybe) DefaultIfEmpty(value interface{}) *Single {
	return newSingle(liftSource(kindMaybe, m.source, func(down *emitter) Observer {
		return func(item Item) {
			if item.IsComplete() {
				down.OnSuccess(value)
				return
			}
			down.Emit(item)
		}
	}))
}

// ToObservable 值之后补发完成信号
func (m *Maybe) ToObservable() *Observable {
	return newObservable(toMultiSource(kindMaybe, m.source))
}

// MaybeTransformer 可复用的Maybe算子链
type MaybeTransformer func(upstream *Maybe) *Maybe

// Compose 应用一个算子链
func (m *Maybe) Compose(transformer MaybeTransformer) *Maybe {
	if transformer == nil {
		return m
	}
	return transformer(m)
}

func completeDown(down *emitter) {
	down.OnComplete()
}

// toMultiSource 单值流转为多值流：值之后补发完成
func toMultiSource(kind streamKind, source func(*emitter)) func(*emitter) {
	return liftSource(kind, source, func(down *emitter) Observer {
		return func(item Item) {
			down.Emit(item)
			if item.Kind == SignalNext {
				down.OnComplete()
			}
		}
	})
}

// ============================================================================
// 工厂函数
// ============================================================================

// MaybeCreate 使用生成器创建Maybe，只有第一次OnSuccess/OnError/OnComplete生效
func MaybeCreate(generator func(emitter MaybeEmitter)) *Maybe {
	return newMaybe(func(e *emitter) {
		generator(e)
	})
}

// MaybeJust 以value作为结果
func MaybeJust(value interface{}) *Maybe {
	return newMaybe(func(e *emitter) {
		e.OnSuccess(value)
	})
}

// MaybeEmpty 直接完成
func MaybeEmpty() *Maybe {
	return newMaybe(func(e *emitter) {
		e.OnComplete()
	})
}

// MaybeError 以错误终止
func MaybeError(err error) *Maybe {
	return newMaybe(func(e *emitter) {
		e.OnError(err)
	})
}
