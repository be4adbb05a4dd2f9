package datagrid

import (
	"context"
	"math"

	"adminka/internal/admin"
)

// ChoiceLister is implemented by filters with a fixed set of values.
type ChoiceLister interface {
	Choices() []Choice
}

// Datagrid is a filtered, sorted and paged listing over one ProxyQuery.
// Filters keep their registration order.
type Datagrid struct {
	query   ProxyQuery
	filters map[string]Filter
	order   []string
	values  map[string]Value
	applied bool
}

func New(q ProxyQuery) *Datagrid {
	return &Datagrid{
		query:   q,
		filters: map[string]Filter{},
		values:  map[string]Value{},
	}
}

func (d *Datagrid) Query() ProxyQuery { return d.query }

func (d *Datagrid) AddFilter(f Filter) error {
	if _, ok := d.filters[f.Name()]; ok {
		return admin.DuplicateNamef("filter %q is already registered in the datagrid", f.Name())
	}
	d.filters[f.Name()] = f
	d.order = append(d.order, f.Name())
	return nil
}

func (d *Datagrid) HasFilter(name string) bool {
	_, ok := d.filters[name]
	return ok
}

func (d *Datagrid) Filter(name string) (Filter, error) {
	f, ok := d.filters[name]
	if !ok {
		return nil, admin.NotFoundf("filter %q does not exist", name)
	}
	return f, nil
}

// Filters returns the filters in order.
func (d *Datagrid) Filters() []Filter {
	out := make([]Filter, 0, len(d.order))
	for _, name := range d.order {
		out = append(out, d.filters[name])
	}
	return out
}

func (d *Datagrid) FilterNames() []string {
	return append([]string(nil), d.order...)
}

func (d *Datagrid) RemoveFilter(name string) {
	if _, ok := d.filters[name]; !ok {
		return
	}
	delete(d.filters, name)
	delete(d.values, name)
	for i, n := range d.order {
		if n == name {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
}

// ReorderFilters sets the filter order to keys. keys must be exactly the
// current set of names; otherwise nothing changes.
func (d *Datagrid) ReorderFilters(keys []string) error {
	if len(keys) != len(d.order) {
		return admin.InvalidArgumentf("reorder: got %d keys, datagrid has %d filters", len(keys), len(d.order))
	}
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := d.filters[k]; !ok {
			return admin.InvalidArgumentf("reorder: unknown filter %q", k)
		}
		if _, dup := seen[k]; dup {
			return admin.InvalidArgumentf("reorder: filter %q listed twice", k)
		}
		seen[k] = struct{}{}
	}
	d.order = append([]string(nil), keys...)
	return nil
}

// SetValue stores the submitted value of a filter. Unknown names are a
// NotFound error.
// SetValue sets the value of a filter. Values are fixed once Results or
// Count has built the query.
func (d *Datagrid) SetValue(name string, v Value) error {
	if _, ok := d.filters[name]; !ok {
		return admin.NotFoundf("filter %q does not exist", name)
	}
	if d.applied {
		return admin.InvalidArgumentf("filter %q: values are fixed once the query was built", name)
	}
	d.values[name] = v
	return nil
}

func (d *Datagrid) Values() map[string]Value {
	out := make(map[string]Value, len(d.values))
	for k, v := range d.values {
		out[k] = v
	}
	return out
}

// SetSort orders the listing by a field description.
func (d *Datagrid) SetSort(fd *admin.FieldDescription, order string) {
	d.query.SetSortBy(fd.SortParentAssociationMapping(), fd.SortFieldMapping())
	d.query.SetSortOrder(order)
}

// SetPage selects a 1-based page. perPage <= 0 disables paging.
// SetPage: perPage <= 0 снимает лимит. Смещение, не влезающее в int,
// отклоняется.
func (d *Datagrid) SetPage(page, perPage int) error {
	if perPage <= 0 {
		d.query.SetFirstResult(0)
		d.query.SetMaxResults(0)
		return nil
	}
	if page < 1 {
		page = 1
	}
	if page-1 > math.MaxInt/perPage {
		return admin.InvalidArgumentf("page %d is out of range for %d per page", page, perPage)
	}
	d.query.SetFirstResult((page - 1) * perPage)
	d.query.SetMaxResults(perPage)
	return nil
}

// buildQuery applies every filter with a value once.
func (d *Datagrid) buildQuery() error {
	if d.applied {
		return nil
	}
	for _, name := range d.order {
		v, ok := d.values[name]
		if !ok {
			continue
		}
		if err := d.filters[name].Apply(d.query, v); err != nil {
			return err
		}
	}
	d.applied = true
	return nil
}

func (d *Datagrid) Results(ctx context.Context) ([]map[string]any, error) {
	if err := d.buildQuery(); err != nil {
		return nil, err
	}
	return d.query.Execute(ctx)
}

func (d *Datagrid) Count(ctx context.Context) (int, error) {
	if err := d.buildQuery(); err != nil {
		return 0, err
	}
	return d.query.SingleScalarResult(ctx)
}
