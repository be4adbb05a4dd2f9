package admin

import "adminka/internal/security"

// Pool is the registry of admins, in registration order.
type Pool struct {
	admins  map[string]Admin
	order   []string
	byClass map[string]string
	router  *Router
}

func NewPool(router *Router) *Pool {
	if router == nil {
		router = NewRouter("")
	}
	return &Pool{
		admins:  map[string]Admin{},
		byClass: map[string]string{},
		router:  router,
	}
}

// Register adds an admin and its routes. The first admin registered for a
// class is the one AdminByClass returns.
func (p *Pool) Register(a Admin) error {
	code := a.Code()
	if _, dup := p.admins[code]; dup {
		return DuplicateNamef("admin %q is already registered", code)
	}
	if r, ok := a.(interface{ RouteDefinitions() []Route }); ok {
		for _, rt := range r.RouteDefinitions() {
			if err := p.router.Add(rt); err != nil {
				return err
			}
		}
	}
	p.admins[code] = a
	p.order = append(p.order, code)
	if _, ok := p.byClass[a.Class()]; !ok {
		p.byClass[a.Class()] = code
	}
	return nil
}

func (p *Pool) Has(code string) bool {
	_, ok := p.admins[code]
	return ok
}

// Instance returns the admin registered under code.
func (p *Pool) Instance(code string) (Admin, error) {
	a, ok := p.admins[code]
	if !ok {
		return nil, NotFoundf("admin service %q not found in admin pool", code)
	}
	return a, nil
}

func (p *Pool) AdminByClass(class string) (Admin, bool) {
	code, ok := p.byClass[class]
	if !ok {
		return nil, false
	}
	return p.admins[code], true
}

func (p *Pool) Codes() []string {
	return append([]string(nil), p.order...)
}

func (p *Pool) Router() *Router { return p.router }

// Bind returns a request-scoped pool whose admins answer access questions
// for the given actor. Routes are shared with the original pool.
func (p *Pool) Bind(c security.Checker) *Pool {
	out := &Pool{
		admins:  make(map[string]Admin, len(p.admins)),
		order:   p.order,
		byClass: p.byClass,
		router:  p.router,
	}
	for code, a := range p.admins {
		if b, ok := a.(interface {
			WithChecker(security.Checker) Admin
		}); ok {
			out.admins[code] = b.WithChecker(c)
			continue
		}
		out.admins[code] = a
	}
	return out
}
