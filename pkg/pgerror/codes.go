// postgres error codes, https://www.postgresql.org/docs/current/errcodes-appendix.html
package pgerror

const (
	UniqueViolation      = "23505"
	ForeignKeyViolation  = "23503"
	SerializationFailure = "40001"
	DeadlockDetected     = "40P01"
	LockNotAvailable     = "55P03"
)
