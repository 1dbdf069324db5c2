// Package smoketest содержит smoke-тесты сквозного сценария клиента:
// YAML-конфигурация, сборка через di, вызовы через пул на тестовой системе.
//
// Smoke-тесты проверяют:
//   - Загрузку конфигурации и сборку App без ручной настройки
//   - Ограничение числа соединений и привязку к потоку под нагрузкой
//   - Замену сломанного соединения и сохранение живого после ABAP-исключения
//   - Освобождение всех соединений и горутин при закрытии
//
// Unit-тесты отдельных пакетов находятся рядом с их кодом.
package smoketest
