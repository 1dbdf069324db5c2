package nwrfc

import (
	"errors"
	"fmt"
)

// RC — код возврата нативной библиотеки (RFC_RC).
type RC int

// Значения совпадают с RFC_RC из sapnwrfc.h.
const (
	RCOK                     RC = 0
	RCCommunicationFailure   RC = 1
	RCLogonFailure           RC = 2
	RCAbapRuntimeFailure     RC = 3
	RCAbapMessage            RC = 4
	RCAbapException          RC = 5
	RCClosed                 RC = 6
	RCCanceled               RC = 7
	RCTimeout                RC = 8
	RCMemoryInsufficient     RC = 9
	RCVersionMismatch        RC = 10
	RCInvalidProtocol        RC = 11
	RCSerializationFailure   RC = 12
	RCInvalidHandle          RC = 13
	RCRetry                  RC = 14
	RCExternalFailure        RC = 15
	RCExecuted               RC = 16
	RCNotFound               RC = 17
	RCNotSupported           RC = 18
	RCIllegalState           RC = 19
	RCInvalidParameter       RC = 20
	RCCodepageConversion     RC = 21
	RCConversionFailure      RC = 22
	RCBufferTooSmall         RC = 23
	RCTableMoveBOF           RC = 24
	RCTableMoveEOF           RC = 25
	RCStartSAPGUIFailure     RC = 26
	RCAbapClassException     RC = 27
	RCUnknownError           RC = 28
	RCAuthorizationFailure   RC = 29
	RCAuthenticationFailure  RC = 30
	RCCryptolibFailure       RC = 31
	RCIOFailure              RC = 32
	RCLockingFailure         RC = 33
)

var rcNames = map[RC]string{
	RCOK:                   "RFC_OK",
	RCCommunicationFailure: "RFC_COMMUNICATION_FAILURE",
	RCLogonFailure:         "RFC_LOGON_FAILURE",
	RCAbapRuntimeFailure:   "RFC_ABAP_RUNTIME_FAILURE",
	RCAbapMessage:          "RFC_ABAP_MESSAGE",
	RCAbapException:        "RFC_ABAP_EXCEPTION",
	RCClosed:               "RFC_CLOSED",
	RCCanceled:             "RFC_CANCELED",
	RCTimeout:              "RFC_TIMEOUT",
	RCInvalidHandle:        "RFC_INVALID_HANDLE",
	RCNotFound:             "RFC_NOT_FOUND",
	RCInvalidParameter:     "RFC_INVALID_PARAMETER",
	RCIllegalState:         "RFC_ILLEGAL_STATE",
	RCConversionFailure:    "RFC_CONVERSION_FAILURE",
	RCAuthorizationFailure: "RFC_AUTHORIZATION_FAILURE",
}

func (rc RC) String() string {
	if s, ok := rcNames[rc]; ok {
		return s
	}
	return fmt.Sprintf("RFC_RC(%d)", int(rc))
}

// Group — группа ошибки (RFC_ERROR_GROUP).
type Group int

// Значения совпадают с RFC_ERROR_GROUP.
const (
	GroupOK                           Group = 0
	GroupAbapApplicationFailure       Group = 1
	GroupAbapRuntimeFailure           Group = 2
	GroupLogonFailure                 Group = 3
	GroupCommunicationFailure         Group = 4
	GroupExternalRuntimeFailure       Group = 5
	GroupExternalApplicationFailure   Group = 6
	GroupExternalAuthorizationFailure Group = 7
)

// Error — нативная информация об ошибке (RFC_ERROR_INFO).
type Error struct {
	Code    RC
	Group   Group
	Key     string
	Message string
	// AbapMsgClass, AbapMsgType, AbapMsgNumber — атрибуты сообщения ABAP (если есть)
	AbapMsgClass  string
	AbapMsgType   string
	AbapMsgNumber string
}

// Error реализует интерфейс error.
func (e *Error) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s (%s): %s", e.Code, e.Key, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// AsError извлекает *Error из цепочки ошибок.
func AsError(err error) (*Error, bool) {
	var nErr *Error
	if errors.As(err, &nErr) {
		return nErr, true
	}
	return nil, false
}

// Class — класс сбоя, определяющий реакцию соединения.
type Class int

const (
	// ClassOther — прочие сбои нативного слоя.
	ClassOther Class = iota
	// ClassCommunication — сетевой/транспортный сбой.
	ClassCommunication
	// ClassLogon — отказ в логоне или авторизации.
	ClassLogon
	// ClassAbapApplication — исключение или сообщение ABAP.
	ClassAbapApplication
	// ClassAbapRuntime — короткий дамп ABAP.
	ClassAbapRuntime
	// ClassNotFound — объект (функциональный модуль, тип) не найден.
	ClassNotFound
)

func (c Class) String() string {
	switch c {
	case ClassCommunication:
		return "communication"
	case ClassLogon:
		return "logon"
	case ClassAbapApplication:
		return "abap_application"
	case ClassAbapRuntime:
		return "abap_runtime"
	case ClassNotFound:
		return "not_found"
	default:
		return "other"
	}
}

// Classify определяет класс сбоя по нативной ошибке.
// Код возврата приоритетнее группы; группа используется для кодов,
// которые библиотека выставляет неоднозначно.
func Classify(err error) Class {
	nErr, ok := AsError(err)
	if !ok {
		return ClassOther
	}
	switch nErr.Code {
	case RCCommunicationFailure, RCClosed, RCTimeout, RCInvalidHandle, RCCanceled:
		return ClassCommunication
	case RCLogonFailure, RCAuthorizationFailure, RCAuthenticationFailure:
		return ClassLogon
	case RCAbapException, RCAbapMessage, RCAbapClassException:
		return ClassAbapApplication
	case RCAbapRuntimeFailure:
		if nErr.Key == "FU_NOT_FOUND" {
			return ClassNotFound
		}
		return ClassAbapRuntime
	case RCNotFound:
		return ClassNotFound
	}
	switch nErr.Group {
	case GroupCommunicationFailure:
		return ClassCommunication
	case GroupLogonFailure, GroupExternalAuthorizationFailure:
		return ClassLogon
	case GroupAbapApplicationFailure:
		return ClassAbapApplication
	case GroupAbapRuntimeFailure:
		return ClassAbapRuntime
	}
	return ClassOther
}
