package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GET /api/admin/menu
func SidebarHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		d, checker := actor(c)
		root, err := d.Sidebar(checker)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, root)
	}
}

// GET /api/admin/menu/:group
// Скрытая группа отдаётся как есть, с display=false.
func GroupMenuHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		d, checker := actor(c)
		it, err := d.Menu(checker, c.Param("group"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, it)
	}
}
