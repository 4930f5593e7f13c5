package migrations

import "embed"

// PostgresFS embeds the issuance journal schema.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS embeds the issuance analytics schema.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS
