package handlers

import (
	"encoding/json"
	"strconv"

	"github.com/go-playground/validator/v10"
	xhttp "github.com/nimasrn/outreach-engine/pkg/http"
)

var validate = validator.New()

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	body := ctx.PostBody()
	return json.Unmarshal(body, dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, _ := json.Marshal(v)
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, map[string]string{"error": msg})
}

func pathInt64(ctx *xhttp.RequestCtx, name string) (int64, error) {
	v, _ := ctx.UserValue(name).(string)
	return strconv.ParseInt(v, 10, 64)
}
