package api

import (
	"github.com/gin-gonic/gin"

	"adminka/internal/dashboard"
	"adminka/internal/security"
)

// RolesHeader carries the actor's roles, comma separated. The header is
// trusted; authentication happens in front of this service.
const RolesHeader = "X-Admin-Roles"

const (
	ctxDashboard = "adminka.dashboard"
	ctxChecker   = "adminka.checker"
)

// ActorMiddleware pins the current dashboard for the whole request and
// resolves the actor's checker.
func ActorMiddleware(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		d := s.Dashboard()
		c.Set(ctxDashboard, d)
		c.Set(ctxChecker, d.Checker(security.ParseRoles(c.GetHeader(RolesHeader))))
		c.Next()
	}
}

func actor(c *gin.Context) (*dashboard.Dashboard, security.Checker) {
	return c.MustGet(ctxDashboard).(*dashboard.Dashboard), c.MustGet(ctxChecker).(security.Checker)
}
