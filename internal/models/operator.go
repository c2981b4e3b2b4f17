package models

import "time"

// Operator — учётная запись сотрудника бэк-офиса.
type Operator struct {
	ID           int64
	Username     string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}
