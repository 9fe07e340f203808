package echoapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/accesscode"
	"github.com/trezcool/darasa/core/account"
	"github.com/trezcool/darasa/core/audit"
	"github.com/trezcool/darasa/core/enroll"
	"github.com/trezcool/darasa/core/notif"
)

type (
	Options struct {
		Addr           string
		DisableReqLogs bool
		EnrollSvc      enroll.ServiceInterface
		CodeSvc        accesscode.ServiceInterface
		AuditSvc       audit.ServiceInterface
		AccountSvc     account.ServiceInterface
		Broker         *notif.Broker
		Logger         core.Logger
		// Shutdown is called when a handler surfaces an unrecoverable error;
		// the owner is expected to stop the server gracefully.
		Shutdown func()
	}

	Server interface {
		http.Handler
		Start()
		Stop(context.Context) error
	}

	server struct {
		opts *Options
		app  *echo.Echo
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	if opts.Shutdown == nil {
		opts.Shutdown = func() {}
	}
	s := &server{
		opts: opts,
		app:  echo.New(),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	debug := core.Conf.Debug

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(debug || core.Conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.Shutdown)
	s.app.Debug = debug

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(appJWTConfig)

	registerEnrollAPI(v1, jwt, s.opts.EnrollSvc)
	registerAccessCodeAPI(v1, jwt, s.opts.CodeSvc)
	registerAuditAPI(v1, jwt, s.opts.AuditSvc)
	registerAccountAPI(v1, jwt, s.opts.AccountSvc)
	registerStreamAPI(v1, jwt, s.opts.Broker)
}

func (s *server) Start() {
	s.app.Logger.Fatal(s.app.Start(s.opts.Addr))
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Darasa API!")
}
