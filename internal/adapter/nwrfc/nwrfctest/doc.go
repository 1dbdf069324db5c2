// Package nwrfctest предоставляет тестовые утилиты для пакета nwrfc.
//
// Пакет содержит in-memory реализацию нативной библиотеки RFC для unit-тестирования
// соединений, пула и маршалинга без подключения к реальной системе SAP.
//
// # System
//
// System реализует nwrfc.Library. Каждый Open создаёт Handle со своим буфером
// вызова; поля хранятся в нативном представлении (SAP_UC, BCD, little-endian),
// поэтому буфер проверяет длины так же строго, как нативная библиотека.
//
// Пример использования:
//
//	sys := nwrfctest.NewSystem(nwrfctest.WithSysID("NPL"))
//	h, err := sys.Open(nwrfc.ConnectionParams{"ashost": "localhost", "sysnr": "00"})
//
// # Встроенные функциональные модули
//
//   - STFC_CONNECTION — эхо REQUTEXT в ECHOTEXT, идентификация системы в RESPTEXT
//   - STFC_STRUCTURE — эхо структуры IMPORTSTRUCT и строка в таблице RFCTABLE
//   - RFC_RAISE_ERROR — исключение ABAP или короткий дамп по MESSAGETYPE
//
// Собственные модули регистрируются через Register с обработчиком Handler.
//
// # Внедрение сбоев
//
//   - FailNextOpen / FailNextInvoke — следующая операция вернёт заданную ошибку
//   - SetDown — система недоступна: Open и Ping возвращают коммуникационный сбой
//   - BeforeOpen / BeforeInvoke — хуки для блокировки операций в тестах конкурентности
//
// Коммуникационный сбой, отказ логона и короткий дамп разрывают Handle:
// все последующие операции на нём, кроме Close, возвращают RFC_INVALID_HANDLE.
//
// # Счётчики и проверка привязки к потоку
//
// Opens, Closes, Invokes, Describes, Live, MaxLive и LiveCalls позволяют проверять
// инварианты пула и освобождение буферов вызова.
// С WithStrictAffinity каждая операция Handle проверяет, что выполняется на том же
// OS thread, на котором Handle был открыт; нарушения считает AffinityViolations.
package nwrfctest
