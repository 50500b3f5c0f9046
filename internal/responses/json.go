package responses

import "github.com/gin-gonic/gin"

// Envelope is the uniform JSON body for every API response.
type Envelope struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func Success(c *gin.Context, statusCode int, data any, message string) {
	c.JSON(statusCode, Envelope{
		Status:  "success",
		Message: message,
		Data:    data,
	})
}

func Fail(c *gin.Context, statusCode int, err error, message string) {
	body := Envelope{
		Status:  "error",
		Message: message,
	}
	if err != nil {
		body.Error = err.Error()
	}
	c.JSON(statusCode, body)
}
