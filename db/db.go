// Package db carries the embedded SQL migrations applied by goose.
package db

import "embed"

//go:embed migrations/*.sql
var Migrations embed.FS
