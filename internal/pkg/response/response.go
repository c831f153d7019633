package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type envelope struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, envelope{Code: 0, Message: "ok", Data: data})
}

func Error(c *gin.Context, status int, message string) {
	c.JSON(status, envelope{Code: status, Message: message})
}
