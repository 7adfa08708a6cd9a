package handlers

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/nwaqas/finfortress/pkg/errors"
	"github.com/nwaqas/finfortress/pkg/response"
)

// Health reports readiness. The database must answer a ping; everything
// else degrades gracefully.
func Health(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db != nil {
			sqlDB, err := db.DB()
			if err == nil {
				err = sqlDB.PingContext(requestContext(c))
			}
			if err != nil {
				response.Error(c, errors.ErrInternalServer.WithInternal(err))
				return
			}
		}
		response.Success(c, gin.H{"status": "ok"})
	}
}
