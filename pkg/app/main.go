// Package app holds the shared application container handed to every
// service module. It owns nothing itself; lifecycle (construction and
// shutdown) belongs to the entrypoints in cmd/.
package app

import (
	"github.com/ghuser/itemflow/pkg/cache"
	"github.com/ghuser/itemflow/pkg/config"
	"github.com/ghuser/itemflow/pkg/database"
	"github.com/ghuser/itemflow/pkg/events"
	"github.com/ghuser/itemflow/pkg/logger"
)

// Application bundles the process-wide dependencies.
type Application struct {
	Config   *config.Config
	Logger   logger.Logger
	Db       *database.Database
	Redis    *cache.RedisClient
	EventBus *events.EventBus
}
