package middlewares

import (
	"strings"

	"github.com/almacen/inventory_backend/utils"
	"github.com/gin-gonic/gin"
)

const UserHeader = "x-usuario"

// SessionMiddleware records the operator named in x-usuario so writes can attribute
// history rows when the body carries no actor. There is no authentication behind it.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := strings.TrimSpace(c.GetHeader(UserHeader))
		if user == "" {
			c.Next()
			return
		}
		if len(user) > 100 {
			user = user[:100]
		}
		c.Request = c.Request.WithContext(utils.SetUserNameInContext(c.Request.Context(), user))
		c.Next()
	}
}
