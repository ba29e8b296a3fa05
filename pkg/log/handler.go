package log

import (
	"context"
	"log/slog"

	crdb "github.com/cockroachdb/errors"

	"github.com/befresh/phmodel/pkg/errors"
)

// ErrorCode classifies err into one of the Error* codes, or "" when it is
// not one of the library's error kinds.
func ErrorCode(err error) string {
	var (
		notFitted  *errors.NotFittedError
		dim        *errors.DimensionError
		shape      *errors.InputShapeError
		validation *errors.ValidationError
		value      *errors.ValueError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &notFitted):
		return ErrorNotFitted
	case errors.As(err, &dim), errors.As(err, &shape):
		return ErrorDimensionMismatch
	case errors.Is(err, errors.ErrEmptyData):
		return ErrorEmptyData
	case errors.As(err, &validation), errors.As(err, &value), errors.Is(err, errors.ErrMissingColumn):
		return ErrorInvalidInput
	}
	return ""
}

// ErrFmtHandler is a slog handler that adds the cockroachdb/errors stack
// trace and the error code of the record's error attribute.
type ErrFmtHandler struct {
	handler slog.Handler
}

// WrapByErrFmtHandler wraps handler so that records carrying an ErrAttr get
// stacktrace and error.code attributes.
func WrapByErrFmtHandler(handler slog.Handler) slog.Handler {
	return &ErrFmtHandler{
		handler: handler,
	}
}

func (eh *ErrFmtHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return eh.handler.Enabled(ctx, l)
}

func (eh *ErrFmtHandler) Handle(ctx context.Context, r slog.Record) error {
	var err error
	r.Attrs(func(attr slog.Attr) bool {
		if attr.Key == ErrAttrKey {
			err, _ = attr.Value.Any().(error)
			return false
		}
		return true
	})
	if err == nil {
		return eh.handler.Handle(ctx, r)
	}

	if stacktrace := extractStacktrace(err); stacktrace != "" {
		r.AddAttrs(slog.String(StacktraceAttrKey, stacktrace))
	}
	if code := ErrorCode(err); code != "" {
		r.AddAttrs(slog.String(ErrorCodeKey, code))
	}
	return eh.handler.Handle(ctx, r)
}

func (eh *ErrFmtHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ErrFmtHandler{handler: eh.handler.WithAttrs(attrs)}
}

func (eh *ErrFmtHandler) WithGroup(g string) slog.Handler {
	return &ErrFmtHandler{handler: eh.handler.WithGroup(g)}
}

func extractStacktrace(err error) string {
	safeDetails := crdb.GetSafeDetails(err).SafeDetails
	if len(safeDetails) > 0 {
		return safeDetails[0]
	}
	return ""
}
