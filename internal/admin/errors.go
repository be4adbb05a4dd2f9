package admin

import "github.com/cockroachdb/errors"

// Классы ошибок. Проверять через errors.Is; конкретные ошибки помечаются
// через errors.Mark и несут свой текст.
var (
	ErrDuplicateName   = errors.New("duplicate name")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrNoValue         = errors.New("no value")
)

func DuplicateNamef(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrDuplicateName)
}

func InvalidArgumentf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrInvalidArgument)
}

func NotFoundf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrNotFound)
}

func noValuef(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrNoValue)
}
