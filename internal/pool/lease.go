package pool

import (
	"context"
	"sync"

	"github.com/Kargones/nwrfc/internal/adapter/nwrfc"
	"github.com/Kargones/nwrfc/internal/conn"
	"github.com/Kargones/nwrfc/internal/pkg/apperrors"
	"github.com/Kargones/nwrfc/internal/rfc"
)

// Lease — аренда соединения пула. Операции аренды выполняются в порядке
// вызова. Release ставится в очередь за уже начатыми операциями.
type Lease struct {
	pool *Pool
	m    *member

	mu       sync.Mutex
	released bool
}

// ConnID возвращает идентификатор арендованного соединения.
func (l *Lease) ConnID() string { return l.m.conn.ID() }

// Attributes возвращает атрибуты арендованного соединения.
func (l *Lease) Attributes() nwrfc.Attributes { return l.m.conn.Attributes() }

// CallAsync ставит вызов функционального модуля в очередь соединения.
func (l *Lease) CallAsync(ctx context.Context, name string, params rfc.Params, opts ...conn.CallOption) *Future[rfc.Result] {
	c := l.m.conn
	return leaseDo(l, func() (rfc.Result, error) {
		return c.Call(ctx, name, params, opts...)
	})
}

// Call вызывает функциональный модуль и ждёт результата. Если ctx
// завершится раньше, нативный вызов доработает, а аренда вернётся
// в пул только после него.
func (l *Lease) Call(ctx context.Context, name string, params rfc.Params, opts ...conn.CallOption) (rfc.Result, error) {
	return l.CallAsync(ctx, name, params, opts...).Wait(ctx)
}

// Describe возвращает описание интерфейса функционального модуля.
func (l *Lease) Describe(ctx context.Context, name string) (*rfc.FunctionDescriptor, error) {
	c := l.m.conn
	return leaseDo(l, func() (*rfc.FunctionDescriptor, error) {
		return c.Describe(ctx, name)
	}).Wait(ctx)
}

// Ping проверяет связь арендованного соединения.
func (l *Lease) Ping(ctx context.Context) error {
	c := l.m.conn
	_, err := leaseDo(l, func() (struct{}, error) {
		return struct{}{}, c.Ping(ctx)
	}).Wait(ctx)
	return err
}

// Release возвращает соединение в пул: рабочее становится свободным,
// сломанное закрывается и заменяется. Повторный вызов ничего не делает.
func (l *Lease) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return
	}
	l.released = true
	m := l.m
	if !m.pinned.Submit(func() { l.pool.reclaim(m) }) {
		l.pool.reclaim(m)
	}
}

func leaseDo[T any](l *Lease, fn func() (T, error)) *Future[T] {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		var zero T
		return resolved(zero, apperrors.NewAppError(apperrors.ErrConnUnusable, "аренда уже освобождена", nil))
	}
	return submit(l.m.pinned, fn)
}
