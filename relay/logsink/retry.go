package logsink

import "github.com/loomrelay/gateway/internal/dbutil"

func withSQLiteBusyRetry(usingSQLite bool, op func() error) error {
	return dbutil.WithSQLiteBusyRetry(nil, usingSQLite, op)
}
