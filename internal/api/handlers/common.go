package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yoockh/oscesim/internal/utils"
)

type APIError struct {
	Code    utils.Code `json:"code"`
	Message string     `json:"message"`
}

func writeError(c *gin.Context, err error) {
	c.JSON(utils.HTTPStatus(err), APIError{Code: utils.CodeOf(err), Message: utils.SafeMessage(err)})
}

func requireUserID(c *gin.Context) (string, bool) {
	if s := c.GetString("user_id"); s != "" {
		return s, true
	}
	writeError(c, utils.E(utils.CodeUnauthorized, "Auth", "unauthorized", nil))
	return "", false
}

// queryLimit parses ?limit=, falling back to def for missing or non-positive values.
func queryLimit(c *gin.Context, def, max int64) int64 {
	n, err := strconv.ParseInt(c.Query("limit"), 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
