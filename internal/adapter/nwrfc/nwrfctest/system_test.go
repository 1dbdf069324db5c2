package nwrfctest

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kargones/nwrfc/internal/adapter/nwrfc"
)

var testParams = nwrfc.ConnectionParams{
	"ashost": "10.0.0.1",
	"sysnr":  "00",
	"client": "100",
	"user":   "demo",
	"passwd": "secret",
	"lang":   "en",
}

func TestSystem_Open(t *testing.T) {
	tests := []struct {
		name     string
		sys      *System
		params   nwrfc.ConnectionParams
		wantCode nwrfc.RC
	}{
		{
			name:   "успешный логон",
			sys:    NewSystem(WithUser("DEMO", "secret")),
			params: testParams,
		},
		{
			name:     "неверный пароль",
			sys:      NewSystem(WithUser("DEMO", "other")),
			params:   testParams,
			wantCode: nwrfc.RCLogonFailure,
		},
		{
			name:     "нет хоста",
			sys:      NewSystem(),
			params:   nwrfc.ConnectionParams{"user": "demo"},
			wantCode: nwrfc.RCInvalidParameter,
		},
		{
			name: "логон по destination",
			sys: NewSystem(WithDestination("NPL", nwrfc.ConnectionParams{
				"ashost": "10.0.0.1", "sysnr": "00", "user": "demo", "passwd": "secret",
			}), WithUser("demo", "secret")),
			params: nwrfc.ConnectionParams{"dest": "npl"},
		},
		{
			name:     "неизвестный destination",
			sys:      NewSystem(),
			params:   nwrfc.ConnectionParams{"dest": "XXX"},
			wantCode: nwrfc.RCInvalidParameter,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := tt.sys.Open(tt.params)
			if tt.wantCode != nwrfc.RCOK {
				require.Error(t, err)
				nErr, ok := nwrfc.AsError(err)
				require.True(t, ok)
				assert.Equal(t, tt.wantCode, nErr.Code)
				assert.Equal(t, 0, tt.sys.Live())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 1, tt.sys.Live())
			require.NoError(t, h.Close())
			assert.Equal(t, 0, tt.sys.Live())
		})
	}
}

func TestSystem_STFCConnection(t *testing.T) {
	now := time.Date(2024, 10, 16, 12, 30, 0, 0, time.UTC)
	sys := NewSystem(WithSysID("ABC"), WithClock(func() time.Time { return now }))
	h, err := sys.Open(testParams)
	require.NoError(t, err)
	defer h.Close()

	desc, err := h.Describe("stfc_connection")
	require.NoError(t, err)
	c, err := h.NewCall(desc)
	require.NoError(t, err)
	require.NoError(t, c.SetField("REQUTEXT", CharField("hello", 255)))
	require.NoError(t, c.Invoke())

	raw, err := c.Field("ECHOTEXT")
	require.NoError(t, err)
	assert.Len(t, raw, 510)
	assert.Equal(t, "hello", strings.TrimRight(DecodeText(raw), " "))

	raw, err = c.Field("RESPTEXT")
	require.NoError(t, err)
	resp := DecodeText(raw)
	assert.Contains(t, resp, "Sysid: ABC")
	assert.Contains(t, resp, "Date: 20241016")
	assert.Contains(t, resp, "Logon_Data: 100/DEMO/EN")
	assert.Equal(t, 1, sys.Invokes())
	assert.Equal(t, 1, sys.Describes())
}

func TestSystem_DestroyCall(t *testing.T) {
	sys := NewSystem()
	h, err := sys.Open(testParams)
	require.NoError(t, err)
	defer h.Close()

	desc, err := h.Describe("STFC_CONNECTION")
	require.NoError(t, err)
	c, err := h.NewCall(desc)
	require.NoError(t, err)
	assert.Equal(t, 1, sys.LiveCalls())

	require.NoError(t, c.Destroy())
	require.NoError(t, c.Destroy(), "повторный Destroy ничего не делает")
	assert.Equal(t, 0, sys.LiveCalls())

	err = c.Invoke()
	nErr, ok := nwrfc.AsError(err)
	require.True(t, ok)
	assert.Equal(t, nwrfc.RCInvalidHandle, nErr.Code)
	assert.Equal(t, 0, sys.Invokes())

	buf := NewBuffer(desc)
	require.NoError(t, buf.Destroy())
	assert.Equal(t, 0, sys.LiveCalls(), "буфер без соединения не учитывается")
}

func TestSystem_STFCStructure(t *testing.T) {
	sys := NewSystem()
	h, err := sys.Open(testParams)
	require.NoError(t, err)
	defer h.Close()

	desc, err := h.Describe("STFC_STRUCTURE")
	require.NoError(t, err)
	c, err := h.NewCall(desc)
	require.NoError(t, err)

	in, err := c.Structure("IMPORTSTRUCT")
	require.NoError(t, err)
	require.NoError(t, in.SetField("RFCCHAR4", CharField("ABCD", 4)))
	require.NoError(t, in.SetField("RFCINT4", []byte{42, 0, 0, 0}))
	_, err = c.Table("RFCTABLE")
	require.NoError(t, err)
	require.NoError(t, c.Invoke())

	echo, err := c.Structure("ECHOSTRUCT")
	require.NoError(t, err)
	raw, err := echo.Field("RFCINT4")
	require.NoError(t, err)
	assert.Equal(t, []byte{42, 0, 0, 0}, raw)

	tbl, err := c.Table("RFCTABLE")
	require.NoError(t, err)
	require.Equal(t, 1, tbl.RowCount())
	row, err := tbl.Row(0)
	require.NoError(t, err)
	raw, err = row.Field("RFCCHAR4")
	require.NoError(t, err)
	assert.Equal(t, "ABCD", DecodeText(raw))
}

func TestSystem_UnknownFunction(t *testing.T) {
	sys := NewSystem()
	h, err := sys.Open(testParams)
	require.NoError(t, err)
	defer h.Close()

	_, err = h.Describe("Z_MISSING")
	require.Error(t, err)
	assert.Equal(t, nwrfc.ClassNotFound, nwrfc.Classify(err))
	assert.NoError(t, h.Ping(), "соединение остаётся рабочим")
}

func TestSystem_FailuresKillHandle(t *testing.T) {
	tests := []struct {
		name      string
		inject    *nwrfc.Error
		wantClass nwrfc.Class
		wantDead  bool
	}{
		{"коммуникационный сбой", CommunicationFailure("reset"), nwrfc.ClassCommunication, true},
		{"отказ логона", LogonFailure(), nwrfc.ClassLogon, true},
		{"короткий дамп", RuntimeFailure("COMPUTE_INT_ZERODIVIDE", "dump"), nwrfc.ClassAbapRuntime, true},
		{"исключение ABAP", AbapException("NOT_FOUND", "no data"), nwrfc.ClassAbapApplication, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sys := NewSystem()
			h, err := sys.Open(testParams)
			require.NoError(t, err)

			c, err := h.NewCall(ConnectionDesc())
			require.NoError(t, err)
			sys.FailNextInvoke(tt.inject)
			err = c.Invoke()
			require.Error(t, err)
			assert.Equal(t, tt.wantClass, nwrfc.Classify(err))

			pingErr := h.Ping()
			if tt.wantDead {
				require.Error(t, pingErr)
				assert.Error(t, h.Close(), "закрытие разорванного соединения сообщает об ошибке")
			} else {
				require.NoError(t, pingErr)
				assert.NoError(t, h.Close())
			}
			assert.Equal(t, 0, sys.Live())
		})
	}
}

func TestSystem_RaiseError(t *testing.T) {
	sys := NewSystem()
	h, err := sys.Open(testParams)
	require.NoError(t, err)
	defer h.Close()

	c, err := h.NewCall(RaiseErrorDesc())
	require.NoError(t, err)
	err = c.Invoke()
	nErr, ok := nwrfc.AsError(err)
	require.True(t, ok)
	assert.Equal(t, "RAISE_EXCEPTION", nErr.Key)

	c, err = h.NewCall(RaiseErrorDesc())
	require.NoError(t, err)
	require.NoError(t, c.SetField("MESSAGETYPE", CharField("X", 1)))
	err = c.Invoke()
	assert.Equal(t, nwrfc.ClassAbapRuntime, nwrfc.Classify(err))
}

func TestSystem_SetDown(t *testing.T) {
	sys := NewSystem()
	h, err := sys.Open(testParams)
	require.NoError(t, err)

	sys.SetDown(true)
	assert.Equal(t, nwrfc.ClassCommunication, nwrfc.Classify(h.Ping()))
	_, err = sys.Open(testParams)
	assert.Equal(t, nwrfc.ClassCommunication, nwrfc.Classify(err))

	sys.SetDown(false)
	h2, err := sys.Open(testParams)
	require.NoError(t, err)
	assert.NoError(t, h2.Ping())
	_ = h.Close()
	require.NoError(t, h2.Close())
	assert.Equal(t, 2, sys.MaxLive())
	assert.Equal(t, 2, sys.Closes())
}

func TestBuffer_FieldValidation(t *testing.T) {
	c := NewBuffer(ConnectionDesc())

	raw, err := c.Field("ECHOTEXT")
	require.NoError(t, err)
	assert.Equal(t, CharField("", 255), raw, "CHAR инициализируется пробелами")

	err = c.SetField("REQUTEXT", EncodeText("short"))
	nErr, ok := nwrfc.AsError(err)
	require.True(t, ok)
	assert.Equal(t, nwrfc.RCBufferTooSmall, nErr.Code)

	_, err = c.Field("NOPE")
	assert.Error(t, err)
	assert.NoError(t, c.Invoke())
}
