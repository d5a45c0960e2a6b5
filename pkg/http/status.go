package xhttp

import "github.com/valyala/fasthttp"

const (
	StatusOK                  = fasthttp.StatusOK
	StatusCreated             = fasthttp.StatusCreated
	StatusBadRequest          = fasthttp.StatusBadRequest
	StatusNotFound            = fasthttp.StatusNotFound
	StatusRequestTimeout      = fasthttp.StatusRequestTimeout
	StatusUnprocessable       = fasthttp.StatusUnprocessableEntity
	StatusInternalServerError = fasthttp.StatusInternalServerError
	StatusServiceUnavailable  = fasthttp.StatusServiceUnavailable
)

func StatusText(code int) string {
	return fasthttp.StatusMessage(code)
}
