package admin

import (
	"net/url"
	"regexp"
	"strings"
)

var placeholderRe = regexp.MustCompile(`\{(\w+)\}`)

// Route is a named URL pattern such as /admin/blog/post/{id}/edit.
type Route struct {
	Name    string `json:"name" yaml:"name"`
	Pattern string `json:"pattern" yaml:"pattern"`
}

// RouteOptions is what a link item needs to point at a route.
type RouteOptions struct {
	Route    string            `json:"route"`
	Params   map[string]string `json:"routeParameters,omitempty"`
	Absolute bool              `json:"routeAbsolute,omitempty"`
}

// Router keeps named routes and turns them into URLs.
type Router struct {
	BaseURL string
	routes  map[string]Route
	order   []string
}

func NewRouter(baseURL string) *Router {
	return &Router{BaseURL: baseURL, routes: map[string]Route{}}
}

func (r *Router) Add(rt Route) error {
	if rt.Name == "" || rt.Pattern == "" {
		return InvalidArgumentf("route needs a name and a pattern (got %q -> %q)", rt.Name, rt.Pattern)
	}
	if _, dup := r.routes[rt.Name]; dup {
		return DuplicateNamef("route %q is already registered", rt.Name)
	}
	r.routes[rt.Name] = rt
	r.order = append(r.order, rt.Name)
	return nil
}

func (r *Router) Has(name string) bool {
	_, ok := r.routes[name]
	return ok
}

func (r *Router) Routes() []Route {
	out := make([]Route, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.routes[n])
	}
	return out
}

// Generate fills {placeholders} from params; params left over go to the
// query string. absolute prefixes BaseURL.
func (r *Router) Generate(name string, params map[string]string, absolute bool) (string, error) {
	rt, ok := r.routes[name]
	if !ok {
		return "", NotFoundf("route %q does not exist", name)
	}
	used := map[string]struct{}{}
	var missing string
	path := placeholderRe.ReplaceAllStringFunc(rt.Pattern, func(ph string) string {
		key := ph[1 : len(ph)-1]
		v, ok := params[key]
		if !ok && missing == "" {
			missing = key
		}
		used[key] = struct{}{}
		return url.PathEscape(v)
	})
	if missing != "" {
		return "", InvalidArgumentf("route %q requires parameter %q", name, missing)
	}
	q := url.Values{}
	for k, v := range params {
		if _, ok := used[k]; !ok {
			q.Set(k, v)
		}
	}
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	if absolute {
		path = strings.TrimRight(r.BaseURL, "/") + path
	}
	return path, nil
}
