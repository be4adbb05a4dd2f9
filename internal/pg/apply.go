package pg

import (
	"context"
	"database/sql"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// duplicate_object: constraint уже есть
const codeDuplicateObject = "42710"

// ApplyDDL выполняет шаги по порядку. DDL должен быть идемпотентным;
// повторное создание constraint'ов пропускается.
func ApplyDDL(ctx context.Context, db *sql.DB, ddl []Statement, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	for _, st := range ddl {
		text := strings.TrimSpace(st.SQL)
		if text == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, text); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == codeDuplicateObject {
				log.Info("ddl step skipped, object exists",
					zap.String("step", st.Name),
					zap.String("constraint", pgErr.ConstraintName),
					zap.String("message", pgErr.Message))
				continue
			}
			return errors.Wrapf(err, "apply ddl step %s", st.Name)
		}
		log.Debug("ddl step applied", zap.String("step", st.Name))
	}
	return nil
}
