package migrations

import "embed"

// PostgresFS holds the trade result and season snapshot schema files,
// applied in lexical order.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS holds the quote timeseries schema files, applied in
// lexical order.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS
