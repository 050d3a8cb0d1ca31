package web

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/billed-app/billed/internal/core/domain"
	"github.com/billed-app/billed/internal/core/ports"
	"github.com/billed-app/billed/internal/core/usecase"
	"github.com/billed-app/billed/internal/infrastructure/session"
	"github.com/billed-app/billed/internal/observability/metrics"
)

const (
	serviceName      = "web"
	maxProofBytes    = 10 << 20
	msgAlreadySent   = "Une note de frais est déjà en cours d'envoi."
	msgProofTooLarge = "Le justificatif dépasse 10 Mo."
	employeeUserType = "Employee"
)

// StoreFactory returns the bill store serving one connected employee.
type StoreFactory func(user domain.User) ports.BillStore

type Options struct {
	AwaitPersist bool
	Metrics      *metrics.HTTPServerMetrics
	Logger       *slog.Logger
}

type Server struct {
	echo     *echo.Echo
	storeFor StoreFactory
	browsers *browsers
	opts     Options
	logger   *slog.Logger
}

func NewServer(storeFor StoreFactory, registry *session.Registry, opts Options) (*Server, error) {
	renderer, err := newTemplateRenderer()
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		echo:     echo.New(),
		storeFor: storeFor,
		browsers: newBrowsers(registry),
		opts:     opts,
		logger:   logger,
	}
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Renderer = renderer
	s.setupMiddleware()
	s.registerRoutes()
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.echo
}

// SweepSessions forgets browsers whose session went idle.
func (s *Server) SweepSessions() int {
	return s.browsers.sweep()
}

func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestID())
	s.echo.Use(middleware.BodyLimit("12M"))
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"request_id", v.RequestID,
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"duration_ms", float64(v.Latency.Microseconds()) / 1000.0,
			}
			switch {
			case v.Status >= 500:
				s.logger.Error("http_request", attrs...)
			case v.Status >= 400:
				s.logger.Warn("http_request", attrs...)
			default:
				s.logger.Info("http_request", attrs...)
			}
			return nil
		},
	}))
	if s.opts.Metrics != nil {
		s.echo.Use(echo.WrapMiddleware(func(next http.Handler) http.Handler {
			return s.opts.Metrics.Middleware(serviceName, next)
		}))
	}
}

func (s *Server) registerRoutes() {
	s.echo.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.opts.Metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.opts.Metrics.Handler()))
	}

	s.echo.GET(PathFor(domain.RouteLogin), s.showLogin)
	s.echo.POST("/login", s.login)
	s.echo.POST("/logout", s.logout)

	employee := s.echo.Group("/employee")
	employee.GET("/bills", s.showBills)
	employee.GET("/bill/new", s.showNewBill)
	employee.POST("/bill/new/file", s.attachFile)
	employee.POST("/bill/new", s.submitBill)
}

func (s *Server) showLogin(c echo.Context) error {
	return c.Render(http.StatusOK, "login", loginView{})
}

func (s *Server) login(c echo.Context) error {
	b := s.browsers.resolve(c)
	email := strings.TrimSpace(c.FormValue("email"))
	if email == "" {
		return c.Render(http.StatusBadRequest, "login", loginView{Error: "Veuillez saisir votre email."})
	}

	if err := storeUser(b.session, domain.User{Type: employeeUserType, Email: email, Status: "connected"}); err != nil {
		return err
	}
	nav := &Navigator{}
	nav.Navigate(domain.RouteBills)
	return s.follow(c, nav)
}

func (s *Server) logout(c echo.Context) error {
	b := s.browsers.resolve(c)
	b.replaceForm(nil)
	nav := &Navigator{}
	usecase.Logout(b.session, nav)
	return s.follow(c, nav)
}

func (s *Server) showBills(c echo.Context) error {
	b := s.browsers.resolve(c)
	user, err := usecase.CurrentUser(b.session)
	if err != nil {
		return s.redirect(c, domain.RouteLogin)
	}

	var lister ports.BillLister = usecase.NewBillsUseCase(s.storeFor(user))
	bills, err := lister.List(c.Request().Context())
	if err != nil {
		s.logger.Error("bills_list_failed", "email", user.Email, "error", err)
		return c.Render(http.StatusBadGateway, "bills", billsView{Error: domain.DisplayMessage(err)})
	}
	return c.Render(http.StatusOK, "bills", newBillsView(bills, c.QueryParam("proof")))
}

func (s *Server) showNewBill(c echo.Context) error {
	b := s.browsers.resolve(c)
	user, err := usecase.CurrentUser(b.session)
	if err != nil {
		return s.redirect(c, domain.RouteLogin)
	}

	form := s.openForm(b, user)
	b.replaceForm(form)
	return c.Render(http.StatusOK, "newbill", newBillView{
		ExpenseTypes: expenseTypes,
	})
}

func (s *Server) attachFile(c echo.Context) error {
	b := s.browsers.resolve(c)
	user, err := usecase.CurrentUser(b.session)
	if err != nil {
		return s.redirect(c, domain.RouteLogin)
	}
	form := s.formFor(b, user)
	values := readBillForm(c)

	selection, err := readFileSelection(c)
	if err != nil {
		return s.handleFormError(c, form, values, err)
	}
	if err := form.workflow.AttachFile(c.Request().Context(), selection); err != nil {
		return s.handleFormError(c, form, values, err)
	}
	return s.renderForm(c, http.StatusOK, form, values, nil, "")
}

func (s *Server) submitBill(c echo.Context) error {
	b := s.browsers.resolve(c)
	user, err := usecase.CurrentUser(b.session)
	if err != nil {
		return s.redirect(c, domain.RouteLogin)
	}
	form := s.formFor(b, user)
	values := readBillForm(c)
	ctx := c.Request().Context()

	selection, err := readFileSelection(c)
	if err != nil {
		return s.handleFormError(c, form, values, err)
	}
	if err := form.workflow.AttachFile(ctx, selection); err != nil {
		return s.handleFormError(c, form, values, err)
	}

	if err := form.workflow.Submit(ctx, values); err != nil {
		return s.handleFormError(c, form, values, err)
	}
	s.recordSubmission("created")
	b.replaceForm(nil)
	return s.follow(c, form.navigator)
}

func (s *Server) handleFormError(c echo.Context, form *newBillForm, values domain.BillForm, err error) error {
	if notice, ok := domain.AsNotice(err); ok {
		s.recordSubmission("notice")
		return s.renderForm(c, http.StatusBadRequest, form, values, notice, "")
	}
	switch {
	case domain.IsKind(err, domain.ErrUnauthorized):
		return s.redirect(c, domain.RouteLogin)
	case domain.IsKind(err, domain.ErrSubmissionInFlight):
		s.recordSubmission("in_flight")
		return s.renderForm(c, http.StatusConflict, form, values, nil, msgAlreadySent)
	default:
		s.recordSubmission("failed")
		return s.renderForm(c, http.StatusBadGateway, form, values, nil, domain.DisplayMessage(err))
	}
}

func (s *Server) renderForm(c echo.Context, status int, form *newBillForm, values domain.BillForm, notice *domain.Notice, errMsg string) error {
	view := newBillView{
		Form:         values,
		ExpenseTypes: expenseTypes,
		Notice:       notice,
		Error:        errMsg,
	}
	if payload := form.workflow.UploadPayload(); payload != nil {
		view.FileName = payload.FileName
	}
	return c.Render(status, "newbill", view)
}

// formFor returns the open form, creating one for direct posts.
func (s *Server) formFor(b *browser, user domain.User) *newBillForm {
	if form := b.currentForm(); form != nil {
		return form
	}
	form := s.openForm(b, user)
	b.replaceForm(form)
	return form
}

func (s *Server) openForm(b *browser, user domain.User) *newBillForm {
	nav := &Navigator{}
	return &newBillForm{
		navigator: nav,
		workflow: usecase.NewBillSubmissionUseCase(s.storeFor(user), nav, b.session, usecase.NewBillOptions{
			AwaitPersist: s.opts.AwaitPersist,
			Logger:       s.logger,
		}),
	}
}

func (s *Server) follow(c echo.Context, nav *Navigator) error {
	route, ok := nav.Take()
	if !ok {
		route = domain.RouteLogin
	}
	return s.redirect(c, route)
}

func (s *Server) redirect(c echo.Context, route domain.Route) error {
	return c.Redirect(http.StatusSeeOther, PathFor(route))
}

func (s *Server) recordSubmission(outcome string) {
	if s.opts.Metrics != nil {
		s.opts.Metrics.RecordSubmission(serviceName, outcome)
	}
}

func readBillForm(c echo.Context) domain.BillForm {
	return domain.BillForm{
		Type:       c.FormValue("expense-type"),
		Name:       c.FormValue("expense-name"),
		Amount:     c.FormValue("amount"),
		Date:       c.FormValue("datepicker"),
		VAT:        c.FormValue("vat"),
		Pct:        c.FormValue("pct"),
		Commentary: c.FormValue("commentary"),
	}
}

// readFileSelection returns an empty selection when no file was chosen.
func readFileSelection(c echo.Context) (domain.FileSelection, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return domain.FileSelection{}, nil
		}
		return domain.FileSelection{}, err
	}
	if fh.Filename == "" {
		return domain.FileSelection{}, nil
	}

	f, err := fh.Open()
	if err != nil {
		return domain.FileSelection{}, err
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, maxProofBytes+1))
	if err != nil {
		return domain.FileSelection{}, err
	}
	if len(content) > maxProofBytes {
		return domain.FileSelection{}, &domain.Notice{Field: domain.FieldFile, Message: msgProofTooLarge, ResetField: true}
	}
	return domain.FileSelection{
		Path:     fh.Filename,
		MimeType: fh.Header.Get("Content-Type"),
		Content:  content,
	}, nil
}

// storeUser writes the connected user into the session as JSON.
func storeUser(sess ports.Session, user domain.User) error {
	raw, err := encodeUser(user)
	if err != nil {
		return err
	}
	sess.Set(domain.SessionUserKey, raw)
	return nil
}
