package services

import (
	"github.com/ghuser/itemflow/pkg/app"
	pkgcache "github.com/ghuser/itemflow/pkg/cache"
	"github.com/ghuser/itemflow/services/item/application/publisher"
	"github.com/ghuser/itemflow/services/item/infrastructure/persistence/postgres"
)

// Services is the item module's application-service container.
type Services struct {
	Item        *ItemService
	DeadLetters *postgres.DeadLetterStore
}

// New wires the item module's services from the shared application
// container. The projection reader is enabled only when Redis is up.
func New(a *app.Application) *Services {
	repo := postgres.NewItemRepository(a.Db)

	var pub EventPublisher
	if a.EventBus != nil {
		pub = publisher.New(a.EventBus)
	}

	var projection ProjectionReader
	if a.Redis != nil {
		projection = pkgcache.NewItemProjection(a.Redis)
	}

	return &Services{
		Item:        NewItemService(repo, pub, projection, a.Logger),
		DeadLetters: postgres.NewDeadLetterStore(a.Db),
	}
}
