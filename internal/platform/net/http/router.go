package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Handler is a plain handler func
type Handler = func(http.ResponseWriter, *http.Request)

// Router is what modules mount on; chi backs it
type Router interface {
	Get(path string, h Handler)
	Handle(path string, h http.Handler)
	Use(mw ...func(http.Handler) http.Handler)
	Group(fn func(Router))
	Route(prefix string, fn func(Router))
	Mux() http.Handler
}

// NewRouter returns a Router on a fresh chi mux
func NewRouter() Router { return AdaptChi(chi.NewRouter()) }

// AdaptChi wraps an existing chi router
func AdaptChi(r chi.Router) Router { return chiRouter{r} }

type chiRouter struct{ chi.Router }

func (c chiRouter) Get(path string, h Handler) { c.Router.Get(path, h) }

func (c chiRouter) Group(fn func(Router)) {
	c.Router.Group(func(sub chi.Router) { fn(chiRouter{sub}) })
}

func (c chiRouter) Route(prefix string, fn func(Router)) {
	c.Router.Route(prefix, func(sub chi.Router) { fn(chiRouter{sub}) })
}

func (c chiRouter) Mux() http.Handler { return c.Router }
