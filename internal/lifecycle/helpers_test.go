package lifecycle

import (
	"context"
	"database/sql"
)

type noopExecer struct{}

func (noopExecer) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return nil, nil
}
