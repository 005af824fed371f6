// Observable implementation for rxcore
// 多值冷流：每次订阅重新执行源函数
package rxcore

// Observable 0..N个值后接一个终止信号的流，不支持背压
type Observable struct {
	source func(e *emitter)
}

func newObservable(source func(e *emitter)) *Observable {
	return &Observable{source: source}
}

// Subscribe 订阅观察者，返回的Disposable用于取消
func (o *Observable) Subscribe(observer Observer) Disposable {
	if observer == nil {
		observer = callbackObserver(nil, nil, nil)
	}
	e := newEmitter(kindObservable, observer)
	subscribeSource(o.source, e)
	return e
}

// SubscribeWithCallbacks 使用回调订阅，onError为nil时错误交给全局钩子
func (o *Observable) SubscribeWithCallbacks(onNext OnNext, onError OnError, onComplete OnComplete) Disposable {
	return o.Subscribe(callbackObserver(onNext, onError, onComplete))
}

// Map 转换每个值，fn返回错误或panic时以错误终止
func (o *Observable) Map(fn Transformer) *Observable {
	return newObservable(mapSource(kindObservable, o.source, fn))
}

// Filter 只保留满足谓词的值
func (o *Observable) Filter(predicate Predicate) *Observable {
	return newObservable(filterSource(kindObservable, o.source, predicate, nil))
}

// SubscribeOn 订阅动作在scheduler上执行，链中最靠近源的SubscribeOn生效
func (o *Observable) SubscribeOn(scheduler Scheduler) *Observable {
	return newObservable(subscribeOnSource(o.source, scheduler))
}

// ObserveOn 下游信号在scheduler上按顺序投递
func (o *Observable) ObserveOn(scheduler Scheduler) *Observable {
	return newObservable(observeOnSource(kindObservable, o.source, scheduler))
}

// ============================================================================
// 组合
// ============================================================================

// ObservableTransformer 可复用的算子链
type ObservableTransformer func(upstream *Observable) *Observable

// Compose 应用一个算子链
func (o *Observable) Compose(transformer ObservableTransformer) *Observable {
	if transformer == nil {
		return o
	}
	return transformer(o)
}

// ComposeTransformers 按顺序串联多个算子链
func ComposeTransformers(transformers ...ObservableTransformer) ObservableTransformer {
	return func(upstream *Observable) *Observable {
		result := upstream
		for _, t := range transformers {
			result = result.Compose(t)
		}
		return result
	}
}

// SchedulersTransformer 订阅在subscribeOn上执行，结果在observeOn上投递
func SchedulersTransformer(subscribeOn, observeOn Scheduler) ObservableTransformer {
	return func(upstream *Observable) *Observable {
		return upstream.SubscribeOn(subscribeOn).ObserveOn(observeOn)
	}
}
