// Package errs содержит доменные ошибки движка активации и расчётов.
// Все сервисы возвращают эти ошибки через errors.Is, HTTP-слой
// преобразует их в коды ответов.
package errs

import "errors"

var (
	// ErrValidation — входные данные не прошли проверку.
	ErrValidation = errors.New("validation error")
	// ErrNotFound — запрошенная сущность не найдена.
	ErrNotFound = errors.New("not found")
	// ErrConflict — промокод исчерпан или уже активирован клиентом.
	ErrConflict = errors.New("conflict")
	// ErrInsufficientFunds — на балансе клиента недостаточно средств.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrRemoteUnavailable — панель недоступна, локальное состояние не изменено.
	ErrRemoteUnavailable = errors.New("remote service unavailable")
	// ErrRemoteConflict — коллизия имени пользователя на панели,
	// восстанавливается внутри резолвера и наружу не выходит.
	ErrRemoteConflict = errors.New("remote conflict")
)
