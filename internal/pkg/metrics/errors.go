package metrics

import "errors"

// Ошибки валидации Config.
var (
	ErrPushgatewayURLRequired = errors.New("metrics: pushgatewayUrl обязателен при enabled=true")
	ErrPushgatewayURLInvalid  = errors.New("metrics: pushgatewayUrl должен быть URL с host (например http://pushgateway:9091)")
	ErrJobNameRequired        = errors.New("metrics: jobName обязателен")
	ErrInvalidTimeout         = errors.New("metrics: timeout должен быть положительным")
)
