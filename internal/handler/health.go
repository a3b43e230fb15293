package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// BreakerState is satisfied by infra.CircuitBreaker.
type BreakerState interface {
	StateName() string
}

// Health returns a JSON health check response.
// Checks DB and Redis connectivity; never exposes credentials or internals.
// The notification breaker state is informational and never fails the check.
func Health(db *gorm.DB, rdb *redis.Client, breaker BreakerState) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		dbStatus := "connected"
		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(ctx) != nil {
			dbStatus = "error"
		}

		redisStatus := "connected"
		switch {
		case rdb == nil:
			redisStatus = "disabled"
		case rdb.Ping(ctx).Err() != nil:
			redisStatus = "error"
		}

		notifications := "disabled"
		if breaker != nil {
			notifications = breaker.StateName()
		}

		status := http.StatusOK
		if dbStatus != "connected" || redisStatus == "error" {
			status = http.StatusServiceUnavailable
		}

		c.JSON(status, gin.H{
			"ok":            status == http.StatusOK,
			"db":            dbStatus,
			"redis":         redisStatus,
			"notifications": notifications,
		})
	}
}
