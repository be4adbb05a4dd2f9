package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"adminka/internal/store"
)

// POST /api/admin/:code/records
// Только для in-memory хранилища; в Postgres записи пишет приложение-хозяин.
func CreateRecordHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		d, checker := actor(c)
		a, err := d.Pool().Bind(checker).Instance(c.Param("code"))
		if err != nil {
			writeError(c, err)
			return
		}
		if !a.HasAccess("create") {
			c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
			return
		}
		st, ok := d.Queries.(*store.Store)
		if !ok {
			c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "records can only be created with the memory query driver"})
			return
		}

		var obj map[string]any
		if err := c.ShouldBindJSON(&obj); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}
		rec, err := st.Insert(a.Class(), obj)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, store.Flatten(rec))
	}
}
