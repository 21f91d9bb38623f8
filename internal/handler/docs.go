package handler

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

//go:embed docs/openapi.json
var openAPISpec []byte

// loadTemplates разбирает встроенные HTML-шаблоны страниц
func loadTemplates() *template.Template {
	return template.Must(template.New("").ParseFS(templatesFS, "templates/*.tmpl"))
}

// OpenAPI serves the API description
// @Summary OpenAPI document
// @Tags documentation
// @Produce json
// @Success 200 {string} string "OpenAPI 3 JSON"
// @Router /docs/openapi.json [get]
func OpenAPI(c *gin.Context) {
	c.Data(http.StatusOK, "application/json; charset=utf-8", openAPISpec)
}
