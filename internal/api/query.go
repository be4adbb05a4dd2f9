package api

import (
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"adminka/internal/admin"
	"adminka/internal/datagrid"
	"adminka/internal/metrics"
)

const (
	defaultPerPage = 25
	maxPerPage     = 1000
)

// ==== Параметры листинга ====

type listParams struct {
	Page    int
	PerPage int
	Sort    string
	Order   string
	Filters map[string]datagrid.Value
}

// filter[title][value]=x, filter[title][type]=eq, filter[tags][value][]=a, filter[title]=x
var filterKeyRe = regexp.MustCompile(`^filter\[([^\]]+)\](?:\[(value|type)\])?(\[\])?$`)

func parseListParams(q url.Values) listParams {
	lp := listParams{Page: 1, PerPage: defaultPerPage, Order: "ASC", Filters: map[string]datagrid.Value{}}

	if n, err := strconv.Atoi(q.Get("_page")); err == nil && n >= 1 {
		lp.Page = n
	}
	if n, err := strconv.Atoi(q.Get("_per_page")); err == nil && n >= 0 && n <= maxPerPage {
		lp.PerPage = n
	}

	sv := strings.TrimSpace(q.Get("_sort"))
	switch {
	case strings.HasPrefix(sv, "-"):
		lp.Order = "DESC"
		sv = sv[1:]
	case strings.HasPrefix(sv, "+"):
		sv = sv[1:]
	}
	lp.Sort = sv
	if strings.EqualFold(strings.TrimSpace(q.Get("_order")), "desc") {
		lp.Order = "DESC"
	}

	for key, vals := range q {
		m := filterKeyRe.FindStringSubmatch(key)
		if m == nil {
			continue
		}
		name, part, multi := m[1], m[2], m[3] != ""
		v := lp.Filters[name]
		if part == "type" {
			v.Type = strings.TrimSpace(vals[0])
			lp.Filters[name] = v
			continue
		}
		clean := make([]string, 0, len(vals))
		for _, s := range vals {
			if strings.TrimSpace(s) != "" {
				clean = append(clean, s)
			}
		}
		switch {
		case multi || len(clean) > 1:
			v.Value = clean
		case len(clean) == 1:
			v.Value = clean[0]
		default:
			v.Value = ""
		}
		lp.Filters[name] = v
	}
	return lp
}

// ==== Хендлеры датагрида ====

type filterMeta struct {
	Name        string            `json:"name"`
	Type        string            `json:"type"`
	Label       string            `json:"label"`
	Field       string            `json:"field"`
	TargetModel string            `json:"targetModel,omitempty"`
	Operators   []string          `json:"operators"`
	Choices     []datagrid.Choice `json:"choices,omitempty"`
}

// GET /api/admin/:code/filters
func FiltersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		d, checker := actor(c)
		dg, a, err := d.Datagrid(checker, c.Param("code"))
		if err != nil {
			writeError(c, err)
			return
		}
		if !a.HasAccess("list") {
			c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
			return
		}
		out := make([]filterMeta, 0, len(dg.Filters()))
		for _, f := range dg.Filters() {
			fm := filterMeta{
				Name:        f.Name(),
				Type:        f.Type(),
				Label:       f.Label(),
				Field:       f.FieldDescription().FieldName(),
				TargetModel: f.FieldDescription().TargetModel(),
				Operators:   f.Operators(),
			}
			if cl, ok := f.(datagrid.ChoiceLister); ok {
				fm.Choices = cl.Choices()
			}
			out = append(out, fm)
		}
		c.JSON(http.StatusOK, out)
	}
}

// GET /api/admin/:code/list
func ListHandler(driver string) gin.HandlerFunc {
	return func(c *gin.Context) {
		d, checker := actor(c)
		dg, a, err := d.Datagrid(checker, c.Param("code"))
		if err != nil {
			writeError(c, err)
			return
		}
		if !a.HasAccess("list") {
			c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
			return
		}

		lp := parseListParams(c.Request.URL.Query())
		names := make([]string, 0, len(lp.Filters))
		for name := range lp.Filters {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if err := dg.SetValue(name, lp.Filters[name]); err != nil {
				writeError(c, admin.InvalidArgumentf("%v", err))
				return
			}
		}
		if lp.Sort != "" {
			fd, err := d.Manager().NewFieldDescription(a.Class(), lp.Sort, nil)
			if err != nil {
				writeError(c, admin.InvalidArgumentf("_sort: %v", err))
				return
			}
			dg.SetSort(fd, lp.Order)
		}
		if err := dg.SetPage(lp.Page, lp.PerPage); err != nil {
			writeError(c, err)
			return
		}

		timer := prometheus.NewTimer(metrics.ListDuration.WithLabelValues(driver))
		total, err := dg.Count(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		rows, err := dg.Results(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		timer.ObserveDuration()

		c.Header("X-Total-Count", strconv.Itoa(total))
		c.JSON(http.StatusOK, rows)
	}
}
