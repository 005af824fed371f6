// Blocking operators for rxcore
// 阻塞调用者直到流终止或ctx取消，ctx取消时同时取消订阅
package rxcore

import (
	"context"
)

// awaitTerminal 订阅并等待终止信号。singleValue为true时第一个值即为结果
func awaitTerminal(ctx context.Context, subscribe func(observer Observer) Disposable, singleValue bool, onNext func(value interface{})) (Item, error) {
	if err := ctx.Err(); err != nil {
		return Item{}, err
	}
	done := make(chan Item, 1)
	d := subscribe(func(item Item) {
		if item.Kind == SignalNext && !singleValue {
			if onNext != nil {
				onNext(item.Value)
			}
			return
		}
		select {
		case done <- item:
		default:
		}
	})

	select {
	case item := <-done:
		return item, nil
	case <-ctx.Done():
		d.Dispose()
		return Item{}, ctx.Err()
	}
}

// BlockingSubscribe 在调用者中等待流结束，返回流的错误或ctx的错误
func (o *Observable) BlockingSubscribe(ctx context.Context, onNext OnNext) error {
	item, err := awaitTerminal(ctx, o.Subscribe, false, onNext)
	if err != nil {
		return err
	}
	if item.IsError() {
		return item.Error
	}
	return nil
}

// BlockingToSlice 等待流结束并返回所有值
func (o *Observable) BlockingToSlice(ctx context.Context) ([]interface{}, error) {
	values := []interface{}{}
	err := o.BlockingSubscribe(ctx, func(value interface{}) {
		values = append(values, value)
	})
	if err != nil {
		return nil, err
	}
	return values, nil
}

// BlockingGet 等待Single的结果
func (s *Single) BlockingGet(ctx context.Context) (interface{}, error) {
	item, err := awaitTerminal(ctx, s.Subscribe, true, nil)
	if err != nil {
		return nil, err
	}
	if item.IsError() {
		return nil, item.Error
	}
	return item.Value, nil
}

// BlockingGet 等待Maybe的结果，空Maybe返回ok=false
func (m *Maybe) BlockingGet(ctx context.Context) (value interface{}, ok bool, err error) {
	item, err := awaitTerminal(ctx, m.Subscribe, true, nil)
	if err != nil {
		return nil, false, err
	}
	switch item.Kind {
	case SignalError:
		return nil, false, item.Error
	case SignalComplete:
		return nil, false, nil
	default:
		return item.Value, true, nil
	}
}

// BlockingAwait 等待Completable完成
func (c *Completable) BlockingAwait(ctx context.Context) error {
	item, err := awaitTerminal(ctx, c.Subscribe, false, nil)
	if err != nil {
		return err
	}
	if item.IsError() {
		return item.Error
	}
	return nil
}
