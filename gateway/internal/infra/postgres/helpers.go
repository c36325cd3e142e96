package postgres

import (
	"errors"

	"chainpay/pkg/pgerror"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerror.UniqueViolation
}
