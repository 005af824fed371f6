// Blocking operator tests for rxcore
package rxcore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlocking(t *testing.T) {
	ctx := context.Background()

	t.Run("BlockingToSlice等待异步流", func(t *testing.T) {
		values, err := Range(1, 4).SubscribeOn(NewNewThreadScheduler()).BlockingToSlice(ctx)
		require.NoError(t, err)
		assert.Equal(t, []interface{}{1, 2, 3, 4}, values)
	})

	t.Run("BlockingSubscribe返回流的错误", func(t *testing.T) {
		boom := errors.New("boom")
		var seen []interface{}
		err := Create(func(e Emitter) {
			e.OnNext("a")
			e.OnError(boom)
		}).SubscribeOn(NewNewThreadScheduler()).BlockingSubscribe(ctx, func(v interface{}) {
			seen = append(seen, v)
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, []interface{}{"a"}, seen)
	})

	t.Run("ctx取消时取消订阅", func(t *testing.T) {
		timeout, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()

		var emitter Emitter
		err := Create(func(e Emitter) { emitter = e }).BlockingSubscribe(timeout, nil)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.True(t, emitter.IsDisposed())
	})

	t.Run("已取消的ctx直接返回", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		subscribed := false
		_, err := Create(func(e Emitter) { subscribed = true }).BlockingToSlice(cancelled)
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, subscribed)
	})

	t.Run("Single.BlockingGet", func(t *testing.T) {
		value, err := SingleJust(7).SubscribeOn(NewNewThreadScheduler()).BlockingGet(ctx)
		require.NoError(t, err)
		assert.Equal(t, 7, value)

		_, err = SingleError(ErrNoSuchElement).BlockingGet(ctx)
		assert.ErrorIs(t, err, ErrNoSuchElement)
	})

	t.Run("Maybe.BlockingGet", func(t *testing.T) {
		value, ok, err := MaybeJust("x").BlockingGet(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "x", value)

		_, ok, err = MaybeEmpty().BlockingGet(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Completable.BlockingAwait", func(t *testing.T) {
		assert.NoError(t, CompletableComplete().SubscribeOn(NewNewThreadScheduler()).BlockingAwait(ctx))

		boom := errors.New("boom")
		assert.ErrorIs(t, CompletableError(boom).BlockingAwait(ctx), boom)
	})

	t.Run("ToSlice配合BlockingGet", func(t *testing.T) {
		value, err := Just(1, 2).ToSlice().BlockingGet(ctx)
		require.NoError(t, err)
		assert.Equal(t, []interface{}{1, 2}, value)
	})
}
