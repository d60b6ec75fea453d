package services

import "errors"

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	// Ресурс не найден (универсальная)
	ErrNotFound = errors.New("requested resource not found")

	// Ошибки валидации и бизнес-правил
	ErrValidationFailed   = errors.New("validation failed")
	ErrInvalidCredentials = errors.New("invalid login or password")
	ErrEventNameRequired  = errors.New("event name is required")

	// Ошибки ростера
	ErrRosterEmpty          = errors.New("roster has no car rows")
	ErrRosterInvalidRow     = errors.New("roster row is invalid")
	ErrRosterDuplicateCar   = errors.New("roster contains duplicate car number")
	ErrRosterUnknownSchool  = errors.New("roster references unknown school")
	ErrRosterMissingColumns = errors.New("roster header is missing required columns")

	// Ошибки, специфичные для сущностей
	ErrEventNotFound  = errors.New("event not found")
	ErrSchoolNotFound = errors.New("school not found")
	ErrCarNotFound    = errors.New("car not found")

	// Экспорт отчётов
	ErrReportUploadUnavailable = errors.New("report upload is not configured")
)
