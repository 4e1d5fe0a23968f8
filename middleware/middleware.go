package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/xid"

	U "pitchmetrics/util"
)

// scope constants.
const SCOPE_REQ_ID = "reqId"

// RequestIdGenerator attaches a request scoped id used on log lines.
func RequestIdGenerator() gin.HandlerFunc {
	return func(c *gin.Context) {
		U.SetScope(c, SCOPE_REQ_ID, xid.New().String())
		c.Next()
	}
}
