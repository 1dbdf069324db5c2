// Package constants содержит общие константы RFC-клиента.
package constants

// Version — версия модуля. Переопределяется при сборке:
//
//	go build -ldflags "-X github.com/Kargones/nwrfc/internal/constants.Version=1.2.0"
var Version = "dev"

// ServiceName — имя сервиса по умолчанию для метрик и трейсинга.
const ServiceName = "nwrfc"

// Ключи параметров логона нативной библиотеки.
const (
	// ParamDest - имя destination из sapnwrfc.ini
	ParamDest = "dest"
	// ParamASHost - хост сервера приложений
	ParamASHost = "ashost"
	// ParamSysNr - номер системы
	ParamSysNr = "sysnr"
	// ParamMSHost - хост сервера сообщений
	ParamMSHost = "mshost"
	// ParamMSServ - сервис сервера сообщений
	ParamMSServ = "msserv"
	// ParamSysID - SID системы для балансировки
	ParamSysID = "sysid"
	// ParamGroup - группа логона
	ParamGroup = "group"
	// ParamClient - мандант
	ParamClient = "client"
	// ParamUser - пользователь
	ParamUser = "user"
	// ParamPasswd - пароль
	ParamPasswd = "passwd"
	// ParamLang - язык логона
	ParamLang = "lang"
)

// Функциональные модули стандартной поставки SAP, пригодные для проверки связи.
const (
	// FuncConnection - эхо-запрос с описанием партнёрской системы
	FuncConnection = "STFC_CONNECTION"
	// FuncStructure - эхо структуры RFCTEST
	FuncStructure = "STFC_STRUCTURE"
	// FuncRaiseError - генерация ошибок ABAP по типу сообщения
	FuncRaiseError = "RFC_RAISE_ERROR"
)
