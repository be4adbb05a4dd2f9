package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"adminka/internal/dashboard"
)

type reloadReq struct {
	DSLRoot     string `json:"dsl_root"`     // директория с *.dsl
	EnumsRoot   string `json:"enums_root"`   // директория со справочниками enum
	AdminConfig string `json:"admin_config"` // admin.yaml
}

// Reload rebuilds the dashboard from src and swaps it in. On any error the
// current dashboard stays.
func (s *Server) Reload(src dashboard.Sources) (*dashboard.Dashboard, error) {
	s.reload.Lock()
	defer s.reload.Unlock()
	d, err := dashboard.Load(src, s.opts.Queries, s.log)
	if err != nil {
		s.log.Warn("reload rejected", zap.Error(err))
		return nil, err
	}
	s.current.Store(d)
	s.log.Info("dashboard reloaded",
		zap.String("dsl", src.DSLDir),
		zap.String("enums", src.EnumsDir),
		zap.String("admin_config", src.AdminConfig))
	return d, nil
}

// POST /api/admin/_reload
func AdminReloadHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		d, checker := actor(c)
		if !d.IsSuperAdmin(checker) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
			return
		}

		var req reloadReq
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
				return
			}
		}

		src := s.opts.Sources
		if v := strings.TrimSpace(req.DSLRoot); v != "" {
			src.DSLDir = v
		}
		if v := strings.TrimSpace(req.EnumsRoot); v != "" {
			src.EnumsDir = v
		}
		if v := strings.TrimSpace(req.AdminConfig); v != "" {
			src.AdminConfig = v
		}

		nd, err := s.Reload(src)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"ok":          true,
			"dslRoot":     src.DSLDir,
			"enumsRoot":   src.EnumsDir,
			"adminConfig": src.AdminConfig,
			"entities":    len(nd.Entities),
			"enumGroups":  len(nd.Catalog),
			"admins":      len(nd.Pool().Codes()),
		})
	}
}
