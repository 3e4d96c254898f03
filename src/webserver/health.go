package webserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Health reports liveness and the Discord gateway state.
func Health(gw Gateway, backend string) gin.HandlerFunc {
	return func(c *gin.Context) {
		discord := "disabled"
		if gw != nil {
			discord = "down"
			if gw.IsConnected() {
				discord = "up"
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "discord": discord, "store": backend})
	}
}
