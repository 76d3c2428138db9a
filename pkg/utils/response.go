package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// apiError es el cuerpo estándar de error de la API de ingesta. El cliente
// solo recibe el mensaje; los detalles quedan en los logs del servidor.
type apiError struct {
	Message string `json:"message"`
}

// SendSuccess envuelve el payload bajo "data".
func SendSuccess(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, gin.H{
		"data": data,
	})
}

// SendAccepted responde 202: la ingesta se admitió y la entrega al destino
// sigue de forma asíncrona.
func SendAccepted(c *gin.Context, data interface{}) {
	SendSuccess(c, http.StatusAccepted, data)
}

// SendError envía una respuesta de error con formato estandarizado.
func SendError(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error": apiError{
			Message: message,
		},
	})
}

func SendBadRequest(c *gin.Context, message string) {
	SendError(c, http.StatusBadRequest, message)
}

func SendNotFound(c *gin.Context, message string) {
	SendError(c, http.StatusNotFound, message)
}

func SendInternalServerError(c *gin.Context, message string) {
	SendError(c, http.StatusInternalServerError, message)
}
