package domain

import "errors"

// Ошибки сетки и навигации.
// Проверять через errors.Is: по пути наверх их оборачивают контекстом.
var (
	// ErrOutOfBounds - клетка за пределами карты. Всегда ошибка вызывающего.
	ErrOutOfBounds = errors.New("position out of the map")

	// ErrBlocked - шаг в препятствие. Ожидаемая ситуация, агент переживает её.
	ErrBlocked = errors.New("position is blocked")

	// ErrUnreachable - цель недостижима (или не покрыта частичным градиентом).
	ErrUnreachable = errors.New("position unreachable")

	// ErrInvalidDestination - место назначения на препятствии.
	ErrInvalidDestination = errors.New("destination on an obstacle")
)

// Ошибки поиска в мире
var (
	ErrPlaceNotFound      = errors.New("place not found")
	ErrPlaceTypeUndefined = errors.New("place type undefined")
	ErrAgentNotFound      = errors.New("agent not found")
	ErrNothingNear        = errors.New("nothing near")
	ErrNoCalibration      = errors.New("grid has no geographic calibration")
)
