package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/assemblee/assemblee/internal/clock"
	"github.com/assemblee/assemblee/internal/migration"
	"github.com/assemblee/assemblee/internal/observability"
	"github.com/assemblee/assemblee/internal/server"
	"github.com/assemblee/assemblee/pkg/db"
)

func main() {
	app := fx.New(
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
