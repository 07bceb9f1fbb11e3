package planner

import "fmt"

// InputError reports a client argument the planner cannot use, such as an
// invalid pagination window or a stale cursor.
type InputError struct {
	Message string
}

func (e *InputError) Error() string {
	return e.Message
}

// Extensions exposes a GraphQL error code.
func (e *InputError) Extensions() map[string]interface{} {
	return map[string]interface{}{"code": "BAD_USER_INPUT"}
}

func inputErrorf(format string, args ...interface{}) *InputError {
	return &InputError{Message: fmt.Sprintf(format, args...)}
}
