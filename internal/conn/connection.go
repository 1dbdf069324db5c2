// Package conn реализует одно соединение с системой SAP: открытие, вызов
// функциональных модулей, проверку связи и закрытие.
//
// Connection не предназначен для одновременного использования из нескольких
// горутин: вызов из второй горутины во время активного вызова получает
// ErrConnUnusable. Нативная библиотека требует, чтобы все операции над
// хэндлом выполнялись в одном потоке ОС; пул обеспечивает это через
// закреплённый контекст исполнения.
package conn

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Kargones/nwrfc/internal/adapter/nwrfc"
	"github.com/Kargones/nwrfc/internal/constants"
	"github.com/Kargones/nwrfc/internal/pkg/apperrors"
	"github.com/Kargones/nwrfc/internal/pkg/logging"
	"github.com/Kargones/nwrfc/internal/pkg/metrics"
	"github.com/Kargones/nwrfc/internal/pkg/tracing"
	"github.com/Kargones/nwrfc/internal/rfc"
)

// Connection — открытое соединение с системой SAP.
type Connection struct {
	id     string
	lib    nwrfc.Library
	opts   Options
	handle nwrfc.Handle
	attrs  nwrfc.Attributes
	logger logging.Logger

	state     atomic.Int32
	closeOnce sync.Once
	closeErr  error
}

// Open открывает соединение с параметрами opts.Params.
// Любая ошибка нативной библиотеки при открытии возвращается как ErrConnect.
func Open(ctx context.Context, lib nwrfc.Library, opts Options) (*Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrCanceled, "открытие соединения отменено", err)
	}
	opts = opts.withDefaults()

	handle, err := lib.Open(opts.Params.Clone())
	if err != nil {
		opts.Logger.Warn("не удалось открыть соединение",
			"destination", destination(opts.Params),
			"error", err.Error(),
		)
		return nil, apperrors.NewAppError(apperrors.ErrConnect, "не удалось открыть соединение", err)
	}

	attrs, err := handle.Attributes()
	if err != nil {
		_ = handle.Close()
		return nil, apperrors.NewAppError(apperrors.ErrConnect, "не удалось прочитать атрибуты соединения", err)
	}

	id := uuid.NewString()
	c := &Connection{
		id:     id,
		lib:    lib,
		opts:   opts,
		handle: handle,
		attrs:  attrs,
		logger: opts.Logger.With("conn_id", id, "sysid", attrs.SysID, "client", attrs.Client),
	}
	c.state.Store(int32(Connected))

	c.logger.Info("соединение открыто",
		"user", attrs.User,
		"host", attrs.Host,
		"destination", destination(opts.Params),
	)
	return c, nil
}

// ID возвращает уникальный идентификатор соединения.
func (c *Connection) ID() string { return c.id }

// State возвращает текущее состояние.
func (c *Connection) State() State { return State(c.state.Load()) }

// Attributes возвращает атрибуты, прочитанные при открытии.
func (c *Connection) Attributes() nwrfc.Attributes { return c.attrs }

// SystemID возвращает SID партнёрской системы.
func (c *Connection) SystemID() string { return c.attrs.SysID }

// Alive сообщает, можно ли выполнять вызовы.
func (c *Connection) Alive() bool { return c.State() == Connected }

// begin переводит соединение в Busy. Возвращает ErrConnUnusable,
// если соединение занято, сломано или закрыто.
func (c *Connection) begin(ctx context.Context) error {
	if !c.state.CompareAndSwap(int32(Connected), int32(Busy)) {
		return apperrors.NewAppError(apperrors.ErrConnUnusable,
			fmt.Sprintf("соединение в состоянии %s", c.State()), nil)
	}
	if err := ctx.Err(); err != nil {
		c.state.Store(int32(Connected))
		return apperrors.NewAppError(apperrors.ErrCanceled, "вызов отменён до начала", err)
	}
	return nil
}

// end завершает операцию. Закрытие во время операции побеждает.
func (c *Connection) end(next State) {
	c.state.CompareAndSwap(int32(Busy), int32(next))
}

// Call вызывает функциональный модуль name с параметрами params.
//
// Отмена ctx проверяется только до начала нативной работы: начатый
// нативный вызов не прерывается.
func (c *Connection) Call(ctx context.Context, name string, params rfc.Params, opts ...CallOption) (rfc.Result, error) {
	if err := c.begin(ctx); err != nil {
		return nil, err
	}
	name = strings.ToUpper(strings.TrimSpace(name))

	ctx, span := tracing.StartCallSpan(ctx, name, c.attrs.SysID, c.attrs.Client, c.id)
	start := c.opts.Clock.Now()
	c.logger.Debug("вызов функционального модуля", "function", name)

	result, next, err := c.call(name, params, opts)
	c.end(next)

	duration := c.opts.Clock.Now().Sub(start)
	outcome := metrics.OutcomeOK
	if err != nil {
		outcome = apperrors.CodeOf(err)
	}
	tracing.EndCallSpan(span, outcome, err)
	c.opts.Collector.RecordCall(name, c.attrs.SysID, duration, outcome)
	c.notify(ctx, CallEvent{
		TraceID:     tracing.TraceIDFromContext(ctx),
		ConnID:      c.id,
		SysID:       c.attrs.SysID,
		Destination: destination(c.opts.Params),
		Function:    name,
		Start:       start,
		Duration:    duration,
		Outcome:     outcome,
	})

	if err != nil {
		c.logFailure(name, next, duration, err)
		return nil, err
	}
	c.logger.Debug("вызов завершён", "function", name, "duration_ms", duration.Milliseconds())
	return result, nil
}

func (c *Connection) call(name string, params rfc.Params, opts []CallOption) (rfc.Result, State, error) {
	desc, next, err := c.describe(name)
	if err != nil {
		return nil, next, err
	}

	mo := c.opts.Marshal
	for _, o := range opts {
		o(&mo)
	}
	plan, err := rfc.Encode(desc, params, mo)
	if err != nil {
		return nil, Connected, err
	}

	call, err := c.handle.NewCall(desc.Native())
	if err != nil {
		next, err = c.classify(name, err)
		return nil, next, err
	}
	defer c.destroyCall(name, call)
	if err := plan.Apply(call); err != nil {
		next, err = c.bufferFailure(name, err)
		return nil, next, err
	}
	if err := call.Invoke(); err != nil {
		next, err = c.classify(name, err)
		return nil, next, err
	}
	result, err := rfc.Decode(desc, call)
	if err != nil {
		next, err = c.bufferFailure(name, err)
		return nil, next, err
	}
	return result, Connected, nil
}

func (c *Connection) destroyCall(name string, call nwrfc.Call) {
	if err := call.Destroy(); err != nil {
		c.logger.Warn("не удалось освободить буфер вызова", "function", name, "error", err.Error())
	}
}

// Describe возвращает описание интерфейса функционального модуля.
// Описание кэшируется по SID системы.
func (c *Connection) Describe(ctx context.Context, name string) (*rfc.FunctionDescriptor, error) {
	if err := c.begin(ctx); err != nil {
		return nil, err
	}
	desc, next, err := c.describe(strings.ToUpper(strings.TrimSpace(name)))
	c.end(next)
	return desc, err
}

func (c *Connection) describe(name string) (*rfc.FunctionDescriptor, State, error) {
	if d, ok := c.opts.Cache.Get(c.attrs.SysID, name); ok {
		return d, Connected, nil
	}
	native, err := c.handle.Describe(name)
	if err != nil {
		next, err := c.classify(name, err)
		return nil, next, err
	}
	d, err := rfc.FromNative(native)
	if err != nil {
		return nil, Connected, apperrors.NewAppError(apperrors.ErrLookup,
			fmt.Sprintf("описание %s не поддерживается", name), err)
	}
	c.opts.Cache.Put(c.attrs.SysID, d)
	return d, Connected, nil
}

// classify отображает ошибку нативной библиотеки в AppError и следующее
// состояние соединения. Исключение ABAP и отсутствие модуля оставляют
// сессию рабочей, остальные ошибки ломают её.
func (c *Connection) classify(function string, err error) (State, error) {
	switch nwrfc.Classify(err) {
	case nwrfc.ClassCommunication:
		return Broken, apperrors.NewAppError(apperrors.ErrCommunication,
			fmt.Sprintf("коммуникационный сбой при вызове %s", function), err)
	case nwrfc.ClassLogon:
		return Broken, apperrors.NewAppError(apperrors.ErrLogon,
			fmt.Sprintf("отказ логона при вызове %s", function), err)
	case nwrfc.ClassAbapApplication:
		return Connected, apperrors.NewAppError(apperrors.ErrAbapException,
			fmt.Sprintf("%s вернул исключение ABAP", function), err)
	case nwrfc.ClassAbapRuntime:
		return Broken, apperrors.NewAppError(apperrors.ErrAbapRuntime,
			fmt.Sprintf("ошибка выполнения ABAP в %s", function), err)
	case nwrfc.ClassNotFound:
		return Connected, apperrors.NewAppError(apperrors.ErrLookup,
			fmt.Sprintf("функциональный модуль %s не найден", function), err)
	default:
		return Broken, apperrors.NewAppError(apperrors.ErrNative,
			fmt.Sprintf("ошибка нативной библиотеки при вызове %s", function), err)
	}
}

// bufferFailure обрабатывает ошибки записи и чтения буфера вызова:
// сбой связи ломает соединение, прочие ошибки возвращаются как есть.
func (c *Connection) bufferFailure(function string, err error) (State, error) {
	switch nwrfc.Classify(err) {
	case nwrfc.ClassCommunication, nwrfc.ClassLogon:
		return c.classify(function, err)
	}
	if apperrors.CodeOf(err) == "" {
		return Connected, apperrors.NewAppError(apperrors.ErrNative,
			fmt.Sprintf("ошибка буфера вызова %s", function), err)
	}
	return Connected, err
}

// Ping проверяет связь с системой.
func (c *Connection) Ping(ctx context.Context) error {
	if err := c.begin(ctx); err != nil {
		return err
	}
	if err := c.handle.Ping(); err != nil {
		next, err := c.classify("RFC_PING", err)
		if next == Connected {
			next = Broken
		}
		c.end(next)
		c.logger.Warn("проверка связи не пройдена", "error", err.Error())
		return err
	}
	c.end(Connected)
	return nil
}

// Close закрывает нативный хэндл независимо от состояния.
// Повторный вызов возвращает результат первого.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		prev := State(c.state.Swap(int32(Disconnected)))
		if err := c.handle.Close(); err != nil {
			c.logger.Warn("ошибка закрытия соединения", "state", prev.String(), "error", err.Error())
			c.closeErr = apperrors.NewAppError(apperrors.ErrNative, "ошибка закрытия соединения", err)
			return
		}
		c.logger.Info("соединение закрыто", "state", prev.String())
	})
	return c.closeErr
}

// Reconnect закрывает соединение и открывает новое с теми же параметрами
// и общим кэшем описаний.
func (c *Connection) Reconnect(ctx context.Context) (*Connection, error) {
	_ = c.Close()
	return Open(ctx, c.lib, c.opts)
}

func (c *Connection) notify(ctx context.Context, ev CallEvent) {
	for _, o := range c.opts.Observers {
		o.ObserveCall(ctx, ev)
	}
}

func (c *Connection) logFailure(function string, next State, duration time.Duration, err error) {
	args := []any{
		"function", function,
		"code", apperrors.CodeOf(err),
		"duration_ms", duration.Milliseconds(),
		"error", err.Error(),
	}
	if next == Broken {
		c.logger.Error("соединение сломано после вызова", args...)
		return
	}
	c.logger.Warn("вызов завершился ошибкой", args...)
}

func destination(p nwrfc.ConnectionParams) string {
	if d := p[constants.ParamDest]; d != "" {
		return d
	}
	if h := p[constants.ParamASHost]; h != "" {
		return h
	}
	return p[constants.ParamMSHost]
}
