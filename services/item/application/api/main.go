// Package api registers the item module's HTTP routes.
package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/ghuser/itemflow/pkg/app"
	"github.com/ghuser/itemflow/services/item/application/handlers"
	appsvcs "github.com/ghuser/itemflow/services/item/application/services"
)

// ItemRoutes mounts the item CRUD surface and the dead-letter operator
// surface on r. Expected to be mounted under /api.
func ItemRoutes(r chi.Router, a *app.Application) {
	svc := appsvcs.New(a)

	postItem := handlers.NewPostItemHandler(svc)
	getItem := handlers.NewGetItemHandler(svc)
	getItems := handlers.NewGetItemsHandler(svc)
	deleteItem := handlers.NewDeleteItemHandler(svc)
	deadLetters := handlers.NewDeadLetterHandler(svc)

	r.Route("/items", func(r chi.Router) {
		r.Get("/", getItems.Execute)
		r.Post("/", postItem.Execute)
		r.Get("/{id}", getItem.Execute)
		r.Delete("/{id}", deleteItem.Execute)
	})

	r.Route("/dead-letters", func(r chi.Router) {
		r.Get("/", deadLetters.List)
		r.Get("/{id}", deadLetters.Get)
		r.Post("/{id}/resolve", deadLetters.Resolve)
	})
}
