// Package all registers every built-in ledger backend.
//
// Commands blank-import this package so the backend named in config is
// available without per-backend wiring:
//
//	import _ "kbsync/internal/ledger/all"
package all

import (
	_ "kbsync/internal/ledger/mssql"
	_ "kbsync/internal/ledger/postgres"
	_ "kbsync/internal/ledger/sqlite"
)
