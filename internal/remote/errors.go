package remote

import (
	"errors"
	"fmt"

	"github.com/rpggio/gradcredits/internal/repository"
	"github.com/rpggio/gradcredits/internal/transport"
)

// ErrUnknownMethod is returned for methods the store does not serve.
var ErrUnknownMethod = errors.New("unknown method")

// rpcError carries a JSON-RPC code back through transport.Server.
type rpcError struct {
	code int
	err  error
}

func (e *rpcError) Error() string { return e.err.Error() }
func (e *rpcError) Unwrap() error { return e.err }
func (e *rpcError) RPCCode() int  { return e.code }

func toRPCError(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return &rpcError{code: transport.ErrNotFoundCode, err: err}
	case errors.Is(err, repository.ErrConflict):
		return &rpcError{code: transport.ErrConflictCode, err: err}
	case errors.Is(err, repository.ErrForeignKeyViolation):
		return &rpcError{code: transport.ErrForeignKeyCode, err: err}
	case errors.Is(err, repository.ErrInvalidInput):
		return &rpcError{code: transport.ErrInvalidParams, err: err}
	case errors.Is(err, ErrUnknownMethod):
		return &rpcError{code: transport.ErrMethodNotFound, err: err}
	}
	return err
}

// fromRPCError translates a JSON-RPC error object back to a repository error.
func fromRPCError(method string, e *transport.Error) error {
	var base error
	switch e.Code {
	case transport.ErrNotFoundCode:
		base = repository.ErrNotFound
	case transport.ErrConflictCode:
		base = repository.ErrConflict
	case transport.ErrForeignKeyCode:
		base = repository.ErrForeignKeyViolation
	case transport.ErrInvalidParams:
		base = repository.ErrInvalidInput
	case transport.ErrMethodNotFound:
		base = ErrUnknownMethod
	default:
		return fmt.Errorf("%s: remote error %d: %s", method, e.Code, e.Message)
	}
	return fmt.Errorf("%s: %w", method, base)
}
