package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/pulselens/pulselens/internal/behavioral"
	"github.com/pulselens/pulselens/internal/clock"
	"github.com/pulselens/pulselens/internal/config"
	"github.com/pulselens/pulselens/internal/event"
	"github.com/pulselens/pulselens/internal/expansion"
	"github.com/pulselens/pulselens/internal/logger"
	"github.com/pulselens/pulselens/internal/migration"
	"github.com/pulselens/pulselens/internal/observability"
	"github.com/pulselens/pulselens/internal/onboarding"
	"github.com/pulselens/pulselens/internal/ratelimit"
	"github.com/pulselens/pulselens/internal/renewal"
	"github.com/pulselens/pulselens/internal/server"
	"github.com/pulselens/pulselens/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		ratelimit.Module,

		// Scoring domains
		event.Module,
		renewal.Module,
		behavioral.Module,
		onboarding.Module,
		expansion.Module,

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
