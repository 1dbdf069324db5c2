// Package pool реализует пул соединений с системой SAP.
//
// Каждое соединение закреплено за собственным контекстом исполнения
// (Pinned): открытие, вызовы, проверка связи и закрытие выполняются в одном
// потоке ОС, как того требует нативная библиотека. Вызывающий получает
// Future и может ждать его синхронно или асинхронно.
//
// Ёмкость пула ограничивает семафор: разрешение удерживает каждая аренда
// и каждое открытие соединения. Новое соединение открывается только когда
// нет свободных, поэтому открытых соединений никогда не больше MaxSize.
package pool

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/Kargones/nwrfc/internal/adapter/nwrfc"
	"github.com/Kargones/nwrfc/internal/conn"
	"github.com/Kargones/nwrfc/internal/pkg/apperrors"
	"github.com/Kargones/nwrfc/internal/pkg/logging"
	"github.com/Kargones/nwrfc/internal/pkg/metrics"
	"github.com/Kargones/nwrfc/internal/rfc"
)

// Причины исключения соединения из пула (label метрики discards).
const (
	reasonBroken    = "broken"
	reasonUnhealthy = "unhealthy"
	reasonIdle      = "idle"
	reasonClosed    = "closed"
)

// member — соединение пула вместе с его контекстом исполнения.
type member struct {
	conn      *conn.Connection
	pinned    Pinned
	idleSince time.Time
}

// Pool — пул соединений фиксированного размера.
type Pool struct {
	lib    nwrfc.Library
	opts   Options
	logger logging.Logger
	sem    *semaphore.Weighted

	mu     sync.Mutex
	idle   []*member
	live   int
	inUse  int
	closed bool

	bg   sync.WaitGroup
	stop chan struct{}
}

// Stats — снимок состояния пула.
type Stats struct {
	MaxSize int
	// Live — открытые и открываемые соединения.
	Live  int
	Idle  int
	InUse int
}

// New создаёт пул и, если задан MinIdle, открывает соединения в фоне.
func New(lib nwrfc.Library, opts Options) (*Pool, error) {
	opts = opts.withDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	p := &Pool{
		lib:    lib,
		opts:   opts,
		logger: opts.Logger.With("component", "pool"),
		sem:    semaphore.NewWeighted(int64(opts.MaxSize)),
		stop:   make(chan struct{}),
	}
	if opts.IdleTimeout > 0 {
		p.bg.Add(1)
		go p.reap()
	}
	p.replenish()

	p.logger.Info("пул соединений создан",
		"max_size", opts.MaxSize,
		"min_idle", opts.MinIdle,
		"acquire_timeout", opts.AcquireTimeout.String(),
		"idle_timeout", opts.IdleTimeout.String(),
	)
	return p, nil
}

// Cache возвращает общий кэш описаний функциональных модулей.
func (p *Pool) Cache() *rfc.DescriptorCache { return p.opts.Conn.Cache }

// Stats возвращает текущие счётчики.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{MaxSize: p.opts.MaxSize, Live: p.live, Idle: len(p.idle), InUse: p.inUse}
}

// Acquire выдаёт аренду соединения. Предпочитает свободные соединения,
// иначе открывает новое. Истечение AcquireTimeout даёт ErrPoolExhausted,
// завершение ctx вызывающего даёт ErrCanceled; в обоих случаях место
// в пуле не занимается.
func (p *Pool) Acquire(ctx context.Context) (*Lease, error) {
	start := p.opts.Clock.Now()
	lease, err := p.acquire(ctx)
	outcome := metrics.OutcomeOK
	if err != nil {
		outcome = apperrors.CodeOf(err)
	}
	p.opts.Collector.RecordAcquire(p.opts.Clock.Now().Sub(start), outcome)
	return lease, err
}

// AcquireAsync выполняет Acquire в фоне. Полученную аренду нужно освободить.
// Если Wait отказался от ожидания, получение отменяется, а выданная
// к этому моменту аренда освобождается пулом; результат такого Future
// читать нельзя.
func (p *Pool) AcquireAsync(ctx context.Context) *Future[*Lease] {
	actx, cancel := context.WithCancel(ctx)
	f := newFuture[*Lease]()
	f.onAbandon = func() {
		cancel()
		go func() {
			<-f.done
			if f.err == nil {
				f.val.Release()
			}
		}()
	}
	go func() {
		defer cancel()
		f.resolve(p.Acquire(actx))
	}()
	return f
}

// Call арендует соединение, вызывает функциональный модуль и освобождает аренду.
func (p *Pool) Call(ctx context.Context, name string, params rfc.Params, opts ...conn.CallOption) (rfc.Result, error) {
	lease, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer lease.Release()
	return lease.Call(ctx, name, params, opts...)
}

// Do выполняет fn с арендованным соединением и освобождает аренду после возврата.
func (p *Pool) Do(ctx context.Context, fn func(ctx context.Context, lease *Lease) error) error {
	lease, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer lease.Release()
	return fn(ctx, lease)
}

func (p *Pool) acquire(ctx context.Context) (*Lease, error) {
	if p.isClosed() {
		return nil, errPoolClosed()
	}
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrCanceled, "получение соединения отменено", err)
	}

	actx, cancel := context.WithTimeout(ctx, p.opts.AcquireTimeout)
	defer cancel()
	if err := p.sem.Acquire(actx, 1); err != nil {
		return nil, p.waitError(ctx, err)
	}

	for {
		m, err := p.takeIdle()
		if err != nil {
			p.sem.Release(1)
			return nil, err
		}
		if m == nil {
			break
		}
		if p.healthy(m) {
			return p.lease(m), nil
		}
		p.destroy(m, reasonUnhealthy)
	}

	m, err := p.open(ctx, actx)
	if err != nil {
		return nil, err
	}
	return p.lease(m), nil
}

func (p *Pool) waitError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return apperrors.NewAppError(apperrors.ErrCanceled, "получение соединения отменено", ctx.Err())
	}
	return apperrors.NewAppError(apperrors.ErrPoolExhausted,
		"нет свободного соединения за "+p.opts.AcquireTimeout.String(), err)
}

func errPoolClosed() error {
	return apperrors.NewAppError(apperrors.ErrPoolClosed, "пул закрыт", nil)
}

func (p *Pool) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// takeIdle снимает с вершины стека последнее освобождённое соединение.
func (p *Pool) takeIdle() (*member, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, errPoolClosed()
	}
	n := len(p.idle)
	if n == 0 {
		return nil, nil
	}
	m := p.idle[n-1]
	p.idle[n-1] = nil
	p.idle = p.idle[:n-1]
	return m, nil
}

func (p *Pool) healthy(m *member) bool {
	if p.opts.HealthCheckAfter <= 0 || p.opts.Clock.Now().Sub(m.idleSince) < p.opts.HealthCheckAfter {
		return m.conn.Alive()
	}
	c := m.conn
	_, err := submit(m.pinned, func() (struct{}, error) {
		return struct{}{}, c.Ping(context.Background())
	}).Result()
	if err != nil {
		p.logger.Warn("проверка простаивающего соединения не пройдена",
			"conn_id", c.ID(), "error", err.Error())
		return false
	}
	return true
}

func (p *Pool) lease(m *member) *Lease {
	p.mu.Lock()
	p.inUse++
	p.recordSize()
	p.mu.Unlock()
	return &Lease{pool: p, m: m}
}

// open открывает соединение в новом контексте исполнения. Если ожидание
// прервано, открытие доводится в фоне, а результат становится свободным
// соединением; разрешение семафора держится до конца открытия.
func (p *Pool) open(ctx, actx context.Context) (*member, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.sem.Release(1)
		return nil, errPoolClosed()
	}
	p.live++
	p.mu.Unlock()

	pinned := p.opts.Bridge.NewPinned()
	fut := submit(pinned, p.openConn)

	select {
	case <-fut.Done():
		c, err := fut.Result()
		if err != nil {
			p.abandonOpen(pinned)
			p.sem.Release(1)
			return nil, err
		}
		return &member{conn: c, pinned: pinned}, nil
	case <-actx.Done():
		p.adoptLate(pinned, fut)
		if ctx.Err() != nil {
			return nil, apperrors.NewAppError(apperrors.ErrCanceled, "получение соединения отменено", ctx.Err())
		}
		return nil, apperrors.NewAppError(apperrors.ErrConnect,
			"соединение не открылось за "+p.opts.AcquireTimeout.String()+", открытие продолжается в фоне", actx.Err())
	}
}

func (p *Pool) openConn() (*conn.Connection, error) {
	return conn.Open(context.Background(), p.lib, p.opts.Conn)
}

func (p *Pool) abandonOpen(pinned Pinned) {
	pinned.Close()
	p.mu.Lock()
	p.live--
	p.mu.Unlock()
}

func (p *Pool) adoptLate(pinned Pinned, fut *Future[*conn.Connection]) {
	p.mu.Lock()
	tracked := !p.closed
	if tracked {
		p.bg.Add(1)
	}
	p.mu.Unlock()

	go func() {
		if tracked {
			defer p.bg.Done()
		}
		defer p.sem.Release(1)
		c, err := fut.Result()
		if err != nil {
			p.abandonOpen(pinned)
			return
		}
		p.logger.Debug("соединение открыто после отказа от ожидания", "conn_id", c.ID())
		p.putIdle(&member{conn: c, pinned: pinned})
	}()
}

// putIdle помещает новое соединение в свободные. Вызывается вне
// контекста исполнения соединения.
func (p *Pool) putIdle(m *member) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.destroy(m, reasonClosed)
		return
	}
	m.idleSince = p.opts.Clock.Now()
	p.idle = append(p.idle, m)
	p.recordSize()
	p.mu.Unlock()
}

// reclaim выполняется в контексте исполнения соединения после всех
// вызовов, поставленных в очередь до Release.
func (p *Pool) reclaim(m *member) {
	defer p.sem.Release(1)

	p.mu.Lock()
	p.inUse--
	if !p.closed && m.conn.Alive() {
		m.idleSince = p.opts.Clock.Now()
		p.idle = append(p.idle, m)
		p.recordSize()
		p.mu.Unlock()
		return
	}
	reason := reasonBroken
	if p.closed {
		reason = reasonClosed
	}
	p.mu.Unlock()

	p.closeMember(m)
	p.forget(m, reason)
	p.replenish()
}

// destroy синхронно закрывает соединение в его контексте исполнения.
func (p *Pool) destroy(m *member, reason string) {
	_, _ = submit(m.pinned, func() (struct{}, error) {
		p.closeMember(m)
		return struct{}{}, nil
	}).Result()
	p.forget(m, reason)
}

func (p *Pool) closeMember(m *member) {
	_ = m.conn.Close()
	m.pinned.Close()
}

func (p *Pool) forget(m *member, reason string) {
	p.mu.Lock()
	p.live--
	p.recordSize()
	p.mu.Unlock()

	p.opts.Collector.RecordDiscard(reason)
	if reason != reasonClosed {
		p.logger.Info("соединение исключено из пула", "conn_id", m.conn.ID(), "reason", reason)
	}
}

// replenish открывает соединения в фоне, пока их меньше MinIdle.
func (p *Pool) replenish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for !p.closed && p.live < p.opts.MinIdle {
		if !p.sem.TryAcquire(1) {
			return
		}
		p.live++
		p.bg.Add(1)
		go p.openIdle()
	}
}

func (p *Pool) openIdle() {
	defer p.bg.Done()
	defer p.sem.Release(1)

	pinned := p.opts.Bridge.NewPinned()
	c, err := submit(pinned, p.openConn).Result()
	if err != nil {
		p.logger.Warn("не удалось открыть резервное соединение", "error", err.Error())
		p.abandonOpen(pinned)
		return
	}
	p.putIdle(&member{conn: c, pinned: pinned})
}

func (p *Pool) reap() {
	defer p.bg.Done()
	for {
		select {
		case <-p.stop:
			return
		case <-p.opts.Clock.After(p.opts.IdleTimeout):
		}
		p.reapIdle()
	}
}

// reapIdle закрывает соединения, простоявшие дольше IdleTimeout, не опускаясь
// ниже MinIdle. На время закрытия удерживается разрешение семафора.
func (p *Pool) reapIdle() {
	for {
		if !p.sem.TryAcquire(1) {
			return
		}
		m := p.takeExpired(p.opts.Clock.Now())
		if m == nil {
			p.sem.Release(1)
			return
		}
		p.destroy(m, reasonIdle)
		p.sem.Release(1)
	}
}

// takeExpired снимает самое давнее свободное соединение, если оно простояло
// дольше IdleTimeout.
func (p *Pool) takeExpired(now time.Time) *member {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || len(p.idle) == 0 || p.live <= p.opts.MinIdle {
		return nil
	}
	m := p.idle[0]
	if now.Sub(m.idleSince) < p.opts.IdleTimeout {
		return nil
	}
	p.idle[0] = nil
	p.idle = p.idle[1:]
	return m
}

// recordSize вызывается под p.mu.
func (p *Pool) recordSize() {
	p.opts.Collector.RecordPoolSize(p.inUse, len(p.idle))
}

// Close закрывает свободные соединения и останавливает фоновые задачи.
// Арендованные соединения закрываются при освобождении аренды.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	inUse := p.inUse
	p.mu.Unlock()

	close(p.stop)
	for _, m := range idle {
		p.destroy(m, reasonClosed)
	}
	p.bg.Wait()
	for _, m := range idle {
		<-m.pinned.Done()
	}

	p.logger.Info("пул соединений закрыт", "closed_idle", len(idle), "in_use", inUse)
	return nil
}
