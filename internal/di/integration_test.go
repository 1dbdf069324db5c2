package di

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kargones/nwrfc/internal/adapter/mssql"
	"github.com/Kargones/nwrfc/internal/adapter/mssql/mssqltest"
	"github.com/Kargones/nwrfc/internal/adapter/nwrfc/nwrfctest"
	"github.com/Kargones/nwrfc/internal/pkg/logging"
	"github.com/Kargones/nwrfc/internal/pkg/metrics"
	"github.com/Kargones/nwrfc/internal/pkg/tracing"
	"github.com/Kargones/nwrfc/internal/rfc"
)

func TestInitializeApp_FullPipeline(t *testing.T) {
	cfg := testConfig()
	sys := nwrfctest.NewSystem()

	app, err := InitializeApp(cfg, sys)
	require.NoError(t, err)
	require.NotNil(t, app)

	assert.Same(t, cfg, app.Config)
	assert.Len(t, app.TraceID, 32)
	assert.Equal(t, mssql.NopJournal{}, app.Journal)

	ctx := app.Context(context.Background())
	assert.Equal(t, app.TraceID, tracing.TraceIDFromContext(ctx))

	res, err := app.Pool.Call(ctx, "STFC_CONNECTION", rfc.Params{"REQUTEXT": rfc.Text("hello")})
	require.NoError(t, err)
	assert.Equal(t, rfc.Text("hello"), res["ECHOTEXT"])

	require.NoError(t, app.Close(context.Background()))
	assert.Equal(t, 0, sys.Live(), "Close закрывает все соединения")
}

func TestInitializeApp_InvalidPool(t *testing.T) {
	cfg := testConfig()
	cfg.Pool.MinIdle = 5

	_, err := InitializeApp(cfg, nwrfctest.NewSystem())
	assert.Error(t, err)
}

func TestApp_JournalReceivesCalls(t *testing.T) {
	db, mock := mssqltest.NewMock(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO [dbo].[RfcCallJournal]")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "NPL", "10.0.0.1", "STFC_CONNECTION",
			sqlmock.AnyArg(), sqlmock.AnyArg(), "OK").
		WillReturnResult(sqlmock.NewResult(1, 1))

	logger := logging.NewNopLogger()
	journal, err := mssql.NewJournalWithDB(db, mssql.Options{Table: "RfcCallJournal"}, logger)
	require.NoError(t, err)

	sys := nwrfctest.NewSystem()
	p, err := ProvidePool(testConfig(), sys, logger, metrics.NewNopCollector(), journal)
	require.NoError(t, err)

	app := &App{Config: testConfig(), Logger: logger, Journal: journal, Pool: p, MetricsCollector: metrics.NewNopCollector()}
	_, err = app.Pool.Call(context.Background(), "STFC_CONNECTION", rfc.Params{"REQUTEXT": rfc.Text("x")})
	require.NoError(t, err)

	require.NoError(t, app.Close(context.Background()))
	assert.Equal(t, mssql.Stats{Written: 1}, journal.Stats())
}
