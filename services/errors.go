package services

import "errors"

// Общие ошибки сервисного слоя, используются в маппинге HTTP
// и в классификации конфликтов синхронизации.
var (
	// Переходы матча
	ErrMatchAlreadyStarted  = errors.New("match is already started")
	ErrMatchAlreadyFinished = errors.New("match is already finished")
	ErrMatchNotStarted      = errors.New("match is not started")
	ErrMatchSlotsNotFilled  = errors.New("both match slots must be filled to start")
	ErrMatchWinnerRequired  = errors.New("winner id is required to finish a match")
	ErrMatchScoresRequired  = errors.New("both scores are required to finish a match")
	ErrMatchWinnerUnknown   = errors.New("winner must be one of the match athletes")
	ErrMatchStatusInvalid   = errors.New("invalid match status")
	ErrMatchNotFound        = errors.New("match not found")

	// Сетка
	ErrBracketNotFound        = errors.New("bracket not found")
	ErrBracketVersionConflict = errors.New("bracket version conflict")
	ErrBracketKindUnsupported = errors.New("unsupported bracket kind")

	// Синхронизация
	ErrSyncEdgeMismatch = errors.New("edge id does not match authenticated station")

	// Аутентификация станций
	ErrStationInvalidCredentials = errors.New("invalid edge id or station key")
	ErrStationNameRequired       = errors.New("station name is required")
)
