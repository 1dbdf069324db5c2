package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	// blank import для драйвера SQL Server
	_ "github.com/denisenkom/go-mssqldb"

	"github.com/Kargones/nwrfc/internal/conn"
	"github.com/Kargones/nwrfc/internal/pkg/apperrors"
	"github.com/Kargones/nwrfc/internal/pkg/logging"
	"github.com/Kargones/nwrfc/internal/pkg/urlutil"
)

const (
	defaultQueueSize    = 1024
	defaultWriteTimeout = 5 * time.Second
	defaultSchema       = "dbo"
)

// identPattern ограничивает части имени таблицы: имя подставляется в запрос
// через fmt.Sprintf, параметризовать идентификатор нельзя.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Compile-time проверки реализации интерфейса
var (
	_ CallJournal = (*Journal)(nil)
	_ CallJournal = NopJournal{}
)

// Journal асинхронно пишет события вызовов в SQL Server.
// ObserveCall не блокируется: при переполнении очереди событие отбрасывается.
type Journal struct {
	db      *sql.DB
	ownsDB  bool
	query   string
	timeout time.Duration
	logger  logging.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan conn.CallEvent
	done   chan struct{}

	closeOnce sync.Once
	closeErr  error

	written atomic.Uint64
	failed  atomic.Uint64
	dropped atomic.Uint64
}

// Open подключается к серверу по opts.DSN и запускает запись журнала.
func Open(ctx context.Context, opts Options, logger logging.Logger) (*Journal, error) {
	if opts.DSN == "" {
		return nil, apperrors.NewAppError(ErrMSSQLConfig, "не задан DSN журнала", nil)
	}
	db, err := sql.Open("sqlserver", opts.DSN)
	if err != nil {
		return nil, apperrors.NewAppError(ErrMSSQLConnect, "не удалось открыть журнал", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		if ctx.Err() != nil {
			return nil, apperrors.NewAppError(ErrMSSQLConnect, "подключение к журналу отменено", ctx.Err())
		}
		return nil, apperrors.NewAppError(ErrMSSQLConnect,
			fmt.Sprintf("сервер журнала недоступен (%s)", urlutil.MaskDSN(opts.DSN)), err)
	}

	j, err := newJournal(db, opts, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	j.ownsDB = true
	j.start()
	j.logger.Info("журнал вызовов подключён", "dsn", urlutil.MaskDSN(opts.DSN))
	return j, nil
}

// NewJournalWithDB создаёт журнал поверх готового *sql.DB.
// Закрытие журнала не закрывает db.
func NewJournalWithDB(db *sql.DB, opts Options, logger logging.Logger) (*Journal, error) {
	j, err := newJournal(db, opts, logger)
	if err != nil {
		return nil, err
	}
	j.start()
	return j, nil
}

func newJournal(db *sql.DB, opts Options, logger logging.Logger) (*Journal, error) {
	table, err := quoteTable(opts.Table)
	if err != nil {
		return nil, err
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Journal{
		db: db,
		query: fmt.Sprintf(`INSERT INTO %s
	(TraceID, ConnID, SysID, Destination, FunctionName, StartedAt, DurationMs, Outcome)
VALUES (@p1, @p2, @p3, @p4, @p5, @p6, @p7, @p8);`, table),
		timeout: opts.WriteTimeout,
		logger:  logger.With("component", "journal", "table", table),
		queue:   make(chan conn.CallEvent, opts.QueueSize),
		done:    make(chan struct{}),
	}, nil
}

// quoteTable проверяет имя "schema.table" или "table" и возвращает "[schema].[table]".
func quoteTable(name string) (string, error) {
	parts := strings.Split(name, ".")
	if len(parts) == 1 {
		parts = []string{defaultSchema, parts[0]}
	}
	if len(parts) != 2 {
		return "", apperrors.NewAppError(ErrMSSQLConfig, fmt.Sprintf("недопустимое имя таблицы %q", name), nil)
	}
	for _, p := range parts {
		if !identPattern.MatchString(p) {
			return "", apperrors.NewAppError(ErrMSSQLConfig, fmt.Sprintf("недопустимое имя таблицы %q", name), nil)
		}
	}
	return "[" + parts[0] + "].[" + parts[1] + "]", nil
}

func (j *Journal) start() {
	go j.run()
}

// ObserveCall ставит событие в очередь записи.
func (j *Journal) ObserveCall(_ context.Context, ev conn.CallEvent) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		j.dropped.Add(1)
		return
	}
	select {
	case j.queue <- ev:
	default:
		if j.dropped.Add(1) == 1 {
			j.logger.Warn("очередь журнала переполнена, события отбрасываются", "capacity", cap(j.queue))
		}
	}
}

func (j *Journal) run() {
	defer close(j.done)
	for ev := range j.queue {
		if err := j.write(ev); err != nil {
			j.failed.Add(1)
			j.logger.Warn("не удалось записать вызов в журнал",
				"function", ev.Function,
				"conn_id", ev.ConnID,
				"error", err.Error(),
			)
			continue
		}
		j.written.Add(1)
	}
}

func (j *Journal) write(ev conn.CallEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	_, err := j.db.ExecContext(ctx, j.query,
		ev.TraceID,
		ev.ConnID,
		ev.SysID,
		ev.Destination,
		ev.Function,
		ev.Start.UTC(),
		ev.Duration.Milliseconds(),
		ev.Outcome,
	)
	return err
}

// Stats возвращает счётчики записей.
func (j *Journal) Stats() Stats {
	return Stats{
		Written: j.written.Load(),
		Failed:  j.failed.Load(),
		Dropped: j.dropped.Load(),
	}
}

// Close прекращает приём событий, дожидается записи очереди и закрывает
// соединение с сервером, если журнал открыл его сам.
func (j *Journal) Close() error {
	j.closeOnce.Do(func() {
		j.mu.Lock()
		j.closed = true
		close(j.queue)
		j.mu.Unlock()

		<-j.done
		st := j.Stats()
		j.logger.Info("журнал закрыт", "written", st.Written, "failed", st.Failed, "dropped", st.Dropped)
		if j.ownsDB {
			j.closeErr = j.db.Close()
		}
	})
	return j.closeErr
}

// NopJournal — журнал, который ничего не пишет.
type NopJournal struct{}

// ObserveCall ничего не делает.
func (NopJournal) ObserveCall(context.Context, conn.CallEvent) {}

// Stats возвращает нулевые счётчики.
func (NopJournal) Stats() Stats { return Stats{} }

// Close ничего не делает.
func (NopJournal) Close() error { return nil }
