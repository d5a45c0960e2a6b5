package xhttp

import (
	"slices"
	"time"

	"github.com/nimasrn/outreach-engine/pkg/logger"
	"github.com/valyala/fasthttp"
)

var DefaultServerOption = ServerOption{
	Handler: func(ctx *RequestCtx) {
		ctx.Error(StatusText(StatusNotFound), StatusNotFound)
	},
	Name:                  "outreach-engine",
	IdleTimeout:           time.Second * 10,
	MaxIdleWorkerDuration: time.Minute,
	TCPKeepalivePeriod:    time.Minute * 120,
	MaxRequestBodySize:    1024 * 1024,
	ReadBufferSize:        1024 * 4,
	WriteBufferSize:       1024 * 4,
	ReadTimeout:           time.Millisecond * 2500,
	WriteTimeout:          time.Millisecond * 2500,
	Concurrency:           10_000,
	ErrorHandler: func(ctx *RequestCtx, err error) {
		logger.Error("[xhttp] request error", "error", err)
	},
	TCPKeepalive:          true,
	NoDefaultServerHeader: true,
	CloseOnShutdown:       true,
}

type ServerOption struct {
	Handler RequestHandler

	// idle keep-alive connections are closed after this long
	IdleTimeout           time.Duration
	MaxIdleWorkerDuration time.Duration
	TCPKeepalivePeriod    time.Duration
	MaxRequestBodySize    int
	ReadBufferSize        int
	WriteBufferSize       int
	ReadTimeout           time.Duration
	WriteTimeout          time.Duration
	Concurrency           int
	ErrorHandler          func(ctx *RequestCtx, err error)
	Name                  string
	TCPKeepalive          bool
	NoDefaultServerHeader bool
	CloseOnShutdown       bool
}

type Engine struct {
	*Router
	Server *fasthttp.Server
	middle []MiddlewareFunc
}

func newServer(options ServerOption) *fasthttp.Server {
	return &fasthttp.Server{
		Handler:               options.Handler,
		ErrorHandler:          options.ErrorHandler,
		Name:                  options.Name,
		Concurrency:           options.Concurrency,
		ReadBufferSize:        options.ReadBufferSize,
		WriteBufferSize:       options.WriteBufferSize,
		ReadTimeout:           options.ReadTimeout,
		WriteTimeout:          options.WriteTimeout,
		IdleTimeout:           options.IdleTimeout,
		MaxIdleWorkerDuration: options.MaxIdleWorkerDuration,
		TCPKeepalivePeriod:    options.TCPKeepalivePeriod,
		MaxRequestBodySize:    options.MaxRequestBodySize,
		TCPKeepalive:          options.TCPKeepalive,
		NoDefaultServerHeader: options.NoDefaultServerHeader,
		CloseOnShutdown:       options.CloseOnShutdown,
		Logger:                logger.GetLogger(),
	}
}

func NewServer(options ServerOption) *Engine {
	return &Engine{
		Server: newServer(options),
		Router: NewRouter(),
	}
}

func CreateServer() *Engine {
	s := NewServer(DefaultServerOption)
	s.Router = CreateDefaultRouter()
	return s
}

func (e *Engine) ListenAndServe(addr string) error {
	e.DoRouting()
	logger.Info("[xhttp] server is listening", "addr", addr)
	return e.Server.ListenAndServe(addr)
}

// DoRouting installs the router as the server handler, wrapped by the
// registered middlewares. The first registered middleware runs first.
func (e *Engine) DoRouting() {
	for method, routes := range e.Router.List() {
		for _, r := range routes {
			logger.Debug("[xhttp] route", "method", method, "path", r)
		}
	}
	handler := e.Router.Handler
	middle := slices.Clone(e.middle)
	slices.Reverse(middle)
	for _, m := range middle {
		handler = m(handler)
	}
	e.Server.Handler = handler
}

// RoutedHandler returns the routed handler without binding a listener.
func (e *Engine) RoutedHandler() RequestHandler {
	e.DoRouting()
	return e.Server.Handler
}

// Use adds middleware to the end of the chain.
func (e *Engine) Use(middleware MiddlewareFunc) {
	e.middle = append(e.middle, middleware)
}

func (e *Engine) Shutdown() {
	logger.Info("[xhttp] server is shutting down")
	if err := e.Server.Shutdown(); err != nil {
		logger.Error("[xhttp] error while shutting down", "error", err)
	}
}
