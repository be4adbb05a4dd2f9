package menu

import (
	"go.uber.org/zap"

	"adminka/internal/admin"
)

// ItemOptions configure a new item. URI wins over Route.
type ItemOptions struct {
	URI             string
	Route           string
	RouteParameters map[string]string
	RouteAbsolute   bool
	Attributes      map[string]string
	Extras          map[string]any
}

// RouteItemOptions points an item at generated route options.
func RouteItemOptions(ro admin.RouteOptions) ItemOptions {
	return ItemOptions{Route: ro.Route, RouteParameters: ro.Params, RouteAbsolute: ro.Absolute}
}

type Factory interface {
	CreateItem(name string, opts ItemOptions) *Item
}

type URLGenerator interface {
	Generate(name string, params map[string]string, absolute bool) (string, error)
}

// DefaultFactory resolves route items to URIs when it has a generator.
type DefaultFactory struct {
	urls URLGenerator
	log  *zap.Logger
}

// NewDefaultFactory: urls and log may be nil.
func NewDefaultFactory(urls URLGenerator, log *zap.Logger) *DefaultFactory {
	if log == nil {
		log = zap.NewNop()
	}
	return &DefaultFactory{urls: urls, log: log}
}

func (f *DefaultFactory) CreateItem(name string, opts ItemOptions) *Item {
	it := NewItem(name)
	for k, v := range opts.Attributes {
		it.SetAttribute(k, v)
	}
	for k, v := range opts.Extras {
		it.SetExtra(k, v)
	}
	if opts.Route != "" {
		it.Route = &admin.RouteOptions{Route: opts.Route, Params: opts.RouteParameters, Absolute: opts.RouteAbsolute}
	}
	switch {
	case opts.URI != "":
		it.URI = opts.URI
	case opts.Route != "" && f.urls != nil:
		uri, err := f.urls.Generate(opts.Route, opts.RouteParameters, opts.RouteAbsolute)
		if err != nil {
			// пункт остаётся без URI
			f.log.Debug("menu route not resolved", zap.String("route", opts.Route), zap.Error(err))
			break
		}
		it.URI = uri
	}
	return it
}
