package inventory

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrorCode classifies a warehouse mutation error. Values match the GraphQL
// WarehouseErrorCode enum.
type ErrorCode string

const (
	CodeAlreadyExists ErrorCode = "ALREADY_EXISTS"
	CodeGraphQLError  ErrorCode = "GRAPHQL_ERROR"
	CodeInvalid       ErrorCode = "INVALID"
	CodeNotFound      ErrorCode = "NOT_FOUND"
	CodeRequired      ErrorCode = "REQUIRED"
	CodeUnique        ErrorCode = "UNIQUE"
)

// FieldError is a client-facing mutation error tied to an input field. An
// empty Field means the error is not attributable to one field.
type FieldError struct {
	Field   string
	Message string
	Code    ErrorCode
}

func (e *FieldError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

const (
	mysqlErrDupEntry          = 1062
	mysqlErrRowIsReferenced   = 1451
	mysqlErrNoReferencedRow   = 1452
	mysqlErrBadNull           = 1048
	mysqlErrNoDefaultForField = 1364
)

// constraintFields maps schema constraint names to the input field reported
// when they are violated.
var constraintFields = map[string]string{
	"uq_warehouse_name":  "name",
	"fk_wsz_warehouse":   "id",
	"fk_wsz_zone":        "shippingZones",
	"fk_stock_warehouse": "id",
}

// ClassifyMySQLError maps constraint violations to field errors. It returns
// false for errors that are not client-correctable.
func ClassifyMySQLError(err error) (*FieldError, bool) {
	var mysqlErr *mysql.MySQLError
	if !errors.As(err, &mysqlErr) {
		return nil, false
	}
	field := constraintField(mysqlErr.Message)
	switch mysqlErr.Number {
	case mysqlErrDupEntry:
		return &FieldError{Field: field, Message: "Warehouse with this value already exists.", Code: CodeUnique}, true
	case mysqlErrRowIsReferenced, mysqlErrNoReferencedRow:
		return &FieldError{Field: field, Message: "Referenced object does not exist.", Code: CodeNotFound}, true
	case mysqlErrBadNull, mysqlErrNoDefaultForField:
		return &FieldError{Field: field, Message: "This field is required.", Code: CodeRequired}, true
	default:
		return nil, false
	}
}

func constraintField(message string) string {
	for constraint, field := range constraintFields {
		if strings.Contains(message, constraint) {
			return field
		}
	}
	return ""
}
