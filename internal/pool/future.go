package pool

import (
	"context"
	"fmt"
	"sync"

	"github.com/Kargones/nwrfc/internal/pkg/apperrors"
)

// Future — результат операции, выполняемой в закреплённом контексте.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error

	// onAbandon вызывается один раз, когда Wait отказывается от ожидания.
	onAbandon   func()
	abandonOnce sync.Once
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

func resolved[T any](v T, err error) *Future[T] {
	f := newFuture[T]()
	f.resolve(v, err)
	return f
}

func (f *Future[T]) resolve(v T, err error) {
	f.val, f.err = v, err
	close(f.done)
}

// Done закрывается, когда результат готов.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Result блокируется до готовности результата.
func (f *Future[T]) Result() (T, error) {
	<-f.done
	return f.val, f.err
}

// Wait ждёт результат или завершение ctx. Готовый результат возвращается
// даже при завершённом ctx. Отказ от ожидания не прерывает операцию: она
// доработает в своём контексте исполнения.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	default:
	}
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
	}
	select {
	case <-f.done:
		return f.val, f.err
	default:
	}
	if f.onAbandon != nil {
		f.abandonOnce.Do(f.onAbandon)
	}
	var zero T
	return zero, apperrors.NewAppError(apperrors.ErrCanceled, "ожидание результата прервано", ctx.Err())
}

// submit выполняет fn в закреплённом контексте p.
func submit[T any](p Pinned, fn func() (T, error)) *Future[T] {
	f := newFuture[T]()
	ok := p.Submit(func() {
		var (
			v   T
			err error
		)
		defer func() {
			if r := recover(); r != nil {
				err = apperrors.NewAppError(apperrors.ErrNative, "паника в контексте соединения", fmt.Errorf("%v", r))
			}
			f.resolve(v, err)
		}()
		v, err = fn()
	})
	if !ok {
		var zero T
		f.resolve(zero, apperrors.NewAppError(apperrors.ErrConnUnusable, "контекст соединения остановлен", nil))
	}
	return f
}
