package nwrfctest

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Kargones/nwrfc/internal/adapter/nwrfc"
)

// Compile-time проверки реализации интерфейсов
var (
	_ nwrfc.Library = (*System)(nil)
	_ nwrfc.Handle  = (*Handle)(nil)
	_ nwrfc.Call    = (*call)(nil)
)

// Handler — реализация функционального модуля тестовой системы.
type Handler func(f *Frame) error

type function struct {
	desc    *nwrfc.FunctionDesc
	handler Handler
}

// Option настраивает System.
type Option func(*System)

// WithSysID задаёт идентификатор системы.
func WithSysID(id string) Option { return func(s *System) { s.attrs.SysID = id } }

// WithClient задаёт мандант, сообщаемый в атрибутах соединения.
func WithClient(client string) Option { return func(s *System) { s.attrs.Client = client } }

// WithUser регистрирует пользователя. Если пользователи заданы,
// Open проверяет user/passwd.
func WithUser(user, password string) Option {
	return func(s *System) { s.users[strings.ToUpper(user)] = password }
}

// WithDestination регистрирует destination для логона по dest.
func WithDestination(name string, params nwrfc.ConnectionParams) Option {
	return func(s *System) { s.destinations[strings.ToUpper(name)] = params.Clone() }
}

// WithStrictAffinity включает проверку привязки Handle к OS thread.
func WithStrictAffinity() Option { return func(s *System) { s.strict = true } }

// WithClock задаёт источник текущего времени для RESPTEXT.
func WithClock(now func() time.Time) Option { return func(s *System) { s.now = now } }

// System — in-memory система SAP, реализующая nwrfc.Library.
type System struct {
	mu           sync.Mutex
	attrs        nwrfc.Attributes
	users        map[string]string
	destinations map[string]nwrfc.ConnectionParams
	functions    map[string]*function
	strict       bool
	now          func() time.Time

	down          bool
	failOpen      []*nwrfc.Error
	failInvoke    []*nwrfc.Error
	beforeOpen    func(nwrfc.ConnectionParams)
	beforeInvoke  func(function string)
	handles       map[*Handle]struct{}
	opens         int
	closes        int
	invokes       int
	describes     int
	pings         int
	live          int
	maxLive       int
	liveCalls     int
	affinityFault int
}

// NewSystem создаёт систему со встроенными модулями STFC_CONNECTION,
// STFC_STRUCTURE и RFC_RAISE_ERROR.
func NewSystem(opts ...Option) *System {
	s := &System{
		attrs: nwrfc.Attributes{
			SysID:          "NPL",
			Client:         "001",
			Host:           "nplhost",
			PartnerRelease: "750",
		},
		users:        make(map[string]string),
		destinations: make(map[string]nwrfc.ConnectionParams),
		functions:    make(map[string]*function),
		now:          time.Now,
		handles:      make(map[*Handle]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	registerBuiltins(s)
	return s
}

// Register регистрирует функциональный модуль; повторная регистрация заменяет его.
func (s *System) Register(desc *nwrfc.FunctionDesc, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.functions[strings.ToUpper(desc.Name)] = &function{desc: desc, handler: h}
}

// FailNextOpen ставит ошибку в очередь для следующего Open.
func (s *System) FailNextOpen(err *nwrfc.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOpen = append(s.failOpen, err)
}

// FailNextInvoke ставит ошибку в очередь для следующего Invoke на любом соединении.
func (s *System) FailNextInvoke(err *nwrfc.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failInvoke = append(s.failInvoke, err)
}

// SetDown переводит систему в недоступное состояние. При down=true
// все открытые соединения разрываются.
func (s *System) SetDown(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.down = down
	if down {
		for h := range s.handles {
			h.kill()
		}
	}
}

// BeforeOpen задаёт хук, вызываемый в начале каждого Open.
func (s *System) BeforeOpen(hook func(nwrfc.ConnectionParams)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beforeOpen = hook
}

// BeforeInvoke задаёт хук, вызываемый в начале каждого Invoke.
func (s *System) BeforeInvoke(hook func(function string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beforeInvoke = hook
}

// Opens возвращает число успешных Open.
func (s *System) Opens() int { return s.counter(func() int { return s.opens }) }

// Closes возвращает число закрытых соединений.
func (s *System) Closes() int { return s.counter(func() int { return s.closes }) }

// Invokes возвращает число выполненных Invoke (включая неуспешные).
func (s *System) Invokes() int { return s.counter(func() int { return s.invokes }) }

// Describes возвращает число запросов описаний.
func (s *System) Describes() int { return s.counter(func() int { return s.describes }) }

// Pings возвращает число Ping.
func (s *System) Pings() int { return s.counter(func() int { return s.pings }) }

// Live возвращает число открытых и ещё не закрытых соединений.
func (s *System) Live() int { return s.counter(func() int { return s.live }) }

// MaxLive возвращает максимальное число одновременно открытых соединений.
func (s *System) MaxLive() int { return s.counter(func() int { return s.maxLive }) }

// LiveCalls возвращает число созданных и ещё не уничтоженных буферов вызова.
func (s *System) LiveCalls() int { return s.counter(func() int { return s.liveCalls }) }

// AffinityViolations возвращает число операций, выполненных не на потоке открытия.
func (s *System) AffinityViolations() int {
	return s.counter(func() int { return s.affinityFault })
}

func (s *System) counter(get func() int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return get()
}

// Open реализует nwrfc.Library.
func (s *System) Open(params nwrfc.ConnectionParams) (nwrfc.Handle, error) {
	s.mu.Lock()
	hook := s.beforeOpen
	s.mu.Unlock()
	if hook != nil {
		hook(params)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.failOpen) > 0 {
		err := s.failOpen[0]
		s.failOpen = s.failOpen[1:]
		return nil, err
	}
	if s.down {
		return nil, CommunicationFailure("partner not reached")
	}
	resolved, err := s.resolve(params)
	if err != nil {
		return nil, err
	}
	if len(s.users) > 0 {
		pw, ok := s.users[strings.ToUpper(resolved["user"])]
		if !ok || pw != resolved["passwd"] {
			return nil, LogonFailure()
		}
	}

	attrs := s.attrs
	attrs.User = strings.ToUpper(resolved["user"])
	attrs.Language = strings.ToUpper(resolved["lang"])
	if c := resolved["client"]; c != "" {
		attrs.Client = c
	}
	h := &Handle{sys: s, attrs: attrs, tid: currentThreadID()}
	s.handles[h] = struct{}{}
	s.opens++
	s.live++
	if s.live > s.maxLive {
		s.maxLive = s.live
	}
	return h, nil
}

func (s *System) resolve(params nwrfc.ConnectionParams) (nwrfc.ConnectionParams, error) {
	if dest := params["dest"]; dest != "" {
		d, ok := s.destinations[strings.ToUpper(dest)]
		if !ok {
			return nil, &nwrfc.Error{
				Code:    nwrfc.RCInvalidParameter,
				Group:   nwrfc.GroupExternalRuntimeFailure,
				Key:     "RFC_INVALID_PARAMETER",
				Message: fmt.Sprintf("Parameter ASHOST, GWHOST, MSHOST or PORT is missing for destination %s", dest),
			}
		}
		merged := d.Clone()
		for k, v := range params {
			if k != "dest" {
				merged[k] = v
			}
		}
		return merged, nil
	}
	if params["ashost"] == "" && params["mshost"] == "" {
		return nil, &nwrfc.Error{
			Code:    nwrfc.RCInvalidParameter,
			Group:   nwrfc.GroupExternalRuntimeFailure,
			Key:     "RFC_INVALID_PARAMETER",
			Message: "Parameter ASHOST, GWHOST, MSHOST or PORT is missing",
		}
	}
	return params, nil
}

// Handle — открытое соединение с тестовой системой.
type Handle struct {
	sys      *System
	attrs    nwrfc.Attributes
	tid      int
	dead     bool
	closed   bool
	detached bool
}

// check проверяет, что Handle можно использовать.
func (h *Handle) check() error {
	if h.detached {
		return nil
	}
	h.sys.mu.Lock()
	defer h.sys.mu.Unlock()
	return h.checkLocked()
}

func (h *Handle) checkLocked() error {
	if h.sys.strict && currentThreadID() != h.tid {
		h.sys.affinityFault++
		return &nwrfc.Error{
			Code:    nwrfc.RCInvalidHandle,
			Group:   nwrfc.GroupExternalRuntimeFailure,
			Key:     "RFC_INVALID_HANDLE",
			Message: "handle used from a thread other than the one that opened it",
		}
	}
	if h.closed || h.dead {
		return &nwrfc.Error{
			Code:    nwrfc.RCInvalidHandle,
			Group:   nwrfc.GroupExternalRuntimeFailure,
			Key:     "RFC_INVALID_HANDLE",
			Message: "An invalid handle was passed to the API call",
		}
	}
	return nil
}

func (h *Handle) kill() { h.dead = true }

// Attributes реализует nwrfc.Handle.
func (h *Handle) Attributes() (nwrfc.Attributes, error) {
	if err := h.check(); err != nil {
		return nwrfc.Attributes{}, err
	}
	return h.attrs, nil
}

// Ping реализует nwrfc.Handle.
func (h *Handle) Ping() error {
	h.sys.mu.Lock()
	defer h.sys.mu.Unlock()
	h.sys.pings++
	if err := h.checkLocked(); err != nil {
		return err
	}
	if h.sys.down {
		h.kill()
		return CommunicationFailure("connection reset by peer")
	}
	return nil
}

// Describe реализует nwrfc.Handle.
func (h *Handle) Describe(name string) (*nwrfc.FunctionDesc, error) {
	h.sys.mu.Lock()
	defer h.sys.mu.Unlock()
	if err := h.checkLocked(); err != nil {
		return nil, err
	}
	h.sys.describes++
	fn, ok := h.sys.functions[strings.ToUpper(name)]
	if !ok {
		return nil, &nwrfc.Error{
			Code:    nwrfc.RCAbapRuntimeFailure,
			Group:   nwrfc.GroupAbapRuntimeFailure,
			Key:     "FU_NOT_FOUND",
			Message: fmt.Sprintf("ID:FL Type:E Number:046 %s", strings.ToUpper(name)),
		}
	}
	return fn.desc, nil
}

// NewCall реализует nwrfc.Handle.
func (h *Handle) NewCall(desc *nwrfc.FunctionDesc) (nwrfc.Call, error) {
	if err := h.check(); err != nil {
		return nil, err
	}
	h.sys.mu.Lock()
	h.sys.liveCalls++
	h.sys.mu.Unlock()
	return newCall(h, desc), nil
}

// Close реализует nwrfc.Handle. Закрытие разорванного соединения
// освобождает его, но возвращает RFC_INVALID_HANDLE.
func (h *Handle) Close() error {
	h.sys.mu.Lock()
	defer h.sys.mu.Unlock()
	if h.closed {
		return nil
	}
	if h.sys.strict && currentThreadID() != h.tid {
		h.sys.affinityFault++
	}
	h.closed = true
	h.sys.closes++
	h.sys.live--
	delete(h.sys.handles, h)
	if h.dead {
		return &nwrfc.Error{
			Code:    nwrfc.RCInvalidHandle,
			Group:   nwrfc.GroupExternalRuntimeFailure,
			Key:     "RFC_INVALID_HANDLE",
			Message: "connection already closed by partner",
		}
	}
	return nil
}

func (h *Handle) invoke(c *call) error {
	if h.detached {
		return nil
	}
	h.sys.mu.Lock()
	hook := h.sys.beforeInvoke
	h.sys.mu.Unlock()
	if hook != nil {
		hook(c.desc.Name)
	}

	h.sys.mu.Lock()
	if err := h.checkLocked(); err != nil {
		h.sys.mu.Unlock()
		return err
	}
	h.sys.invokes++
	var injected *nwrfc.Error
	if len(h.sys.failInvoke) > 0 {
		injected = h.sys.failInvoke[0]
		h.sys.failInvoke = h.sys.failInvoke[1:]
	}
	fn, ok := h.sys.functions[strings.ToUpper(c.desc.Name)]
	h.sys.mu.Unlock()

	var err error
	switch {
	case injected != nil:
		err = injected
	case !ok:
		err = &nwrfc.Error{
			Code:    nwrfc.RCAbapRuntimeFailure,
			Group:   nwrfc.GroupAbapRuntimeFailure,
			Key:     "FU_NOT_FOUND",
			Message: fmt.Sprintf("ID:FL Type:E Number:046 %s", c.desc.Name),
		}
	default:
		err = fn.handler(&Frame{Function: c.desc.Name, Attributes: h.attrs, call: c, now: h.sys.now})
	}
	if err == nil {
		return nil
	}
	switch nwrfc.Classify(err) {
	case nwrfc.ClassCommunication, nwrfc.ClassLogon, nwrfc.ClassAbapRuntime:
		h.sys.mu.Lock()
		h.kill()
		h.sys.mu.Unlock()
	}
	return err
}

// CommunicationFailure возвращает ошибку сетевого сбоя.
func CommunicationFailure(msg string) *nwrfc.Error {
	return &nwrfc.Error{
		Code:    nwrfc.RCCommunicationFailure,
		Group:   nwrfc.GroupCommunicationFailure,
		Key:     "RFC_COMMUNICATION_FAILURE",
		Message: msg,
	}
}

// LogonFailure возвращает ошибку отказа в логоне.
func LogonFailure() *nwrfc.Error {
	return &nwrfc.Error{
		Code:    nwrfc.RCLogonFailure,
		Group:   nwrfc.GroupLogonFailure,
		Key:     "RFC_LOGON_FAILURE",
		Message: "Name or password is incorrect (repeat logon)",
	}
}

// AbapException возвращает исключение ABAP с ключом key.
func AbapException(key, msg string) *nwrfc.Error {
	return &nwrfc.Error{
		Code:    nwrfc.RCAbapException,
		Group:   nwrfc.GroupAbapApplicationFailure,
		Key:     key,
		Message: msg,
	}
}

// RuntimeFailure возвращает короткий дамп ABAP.
func RuntimeFailure(key, msg string) *nwrfc.Error {
	return &nwrfc.Error{
		Code:    nwrfc.RCAbapRuntimeFailure,
		Group:   nwrfc.GroupAbapRuntimeFailure,
		Key:     key,
		Message: msg,
	}
}
