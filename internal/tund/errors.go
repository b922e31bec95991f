package tund

import (
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"

	"github.com/GoSim-25-26J-441/tuning-core/internal/tuner"
)

// errorCode classifies an error for both transports
func errorCode(err error) codes.Code {
	switch {
	case err == nil:
		return codes.OK
	case errors.Is(err, ErrSessionNotFound):
		return codes.NotFound
	case errors.Is(err, ErrSessionExists):
		return codes.AlreadyExists
	case errors.Is(err, ErrSessionClosed), errors.Is(err, tuner.ErrNotBuilt):
		return codes.FailedPrecondition
	case errors.Is(err, ErrInvalidArgument),
		errors.Is(err, tuner.ErrInvalidArgument),
		errors.Is(err, tuner.ErrTooManyValues):
		return codes.InvalidArgument
	default:
		return codes.Internal
	}
}

func httpStatus(code codes.Code) int {
	switch code {
	case codes.OK:
		return http.StatusOK
	case codes.NotFound:
		return http.StatusNotFound
	case codes.AlreadyExists:
		return http.StatusConflict
	case codes.FailedPrecondition:
		return http.StatusPreconditionFailed
	case codes.InvalidArgument:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// resultLabel is the "result" label of the request counter
func resultLabel(code codes.Code) string {
	switch code {
	case codes.OK:
		return "ok"
	case codes.NotFound:
		return "not_found"
	case codes.AlreadyExists:
		return "already_exists"
	case codes.FailedPrecondition:
		return "failed_precondition"
	case codes.InvalidArgument:
		return "invalid_argument"
	default:
		return "internal"
	}
}
