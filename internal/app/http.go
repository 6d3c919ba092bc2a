package app

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"portal/api/internal/export"
	"portal/api/internal/httpx"
	"portal/api/internal/metrics"
	"portal/api/internal/navigation"
	"portal/api/internal/portal"
	"portal/api/internal/rbac"
	"portal/api/internal/store"
)

type HTTPServer struct {
	service       *Service
	corsOrigin    string
	logger        *zap.Logger
	metrics       *metrics.Metrics
	loginLimits   *httpx.RateLimiter
	sessionLimits *httpx.RateLimiter
	upgrader      websocket.Upgrader
}

type ServerOptions struct {
	CORSOrigin string
	Logger     *zap.Logger
	// Metrics is optional; when set requests are instrumented and /metrics is served.
	Metrics *metrics.Metrics
	// LoginLimiter and SessionLimiter are optional and keyed by remote address.
	// SessionLimiter guards anonymous session creation.
	LoginLimiter   *httpx.RateLimiter
	SessionLimiter *httpx.RateLimiter
}

func NewHTTPServer(service *Service, opts ServerOptions) *HTTPServer {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	origin := opts.CORSOrigin
	return &HTTPServer{
		service:       service,
		corsOrigin:    origin,
		logger:        logger,
		metrics:       opts.Metrics,
		loginLimits:   opts.LoginLimiter,
		sessionLimits: opts.SessionLimiter,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return origin == "*" || origin == "" || r.Header.Get("Origin") == origin
			},
		},
	}
}

func (s *HTTPServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(httpx.Middleware(s.logger, s.corsOrigin))
	if s.metrics != nil {
		r.Use(s.metrics.Instrument)
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	r.Options("/*", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	r.Get("/api/health", func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	r.Get("/api/ready", s.handleReady)
	r.Get("/api/catalog", s.handleCatalog)
	r.With(s.limitSessions).Post("/api/session", s.handleSessionCreate)
	r.Get("/api/session", s.handleSessionGet)
	r.With(s.limitLogins).Post("/api/session/login", s.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(s.requireSession)

		r.Post("/api/session/logout", s.handleLogout)

		r.Get("/api/navigation", s.handleNavigation)
		r.Post("/api/navigation/top-tab", s.handleSelectTopTab)
		r.Post("/api/navigation/toggle-category", s.handleToggleCategory)
		r.Post("/api/navigation/select-subservice", s.handleSelectSubService)
		r.Post("/api/navigation/switch-subservice", s.handleSwitchSubService)

		r.Get("/api/search", s.handleSearch)
		r.Post("/api/search/select", s.handleSearchSelect)

		r.Get("/api/tasks", s.handleListTasks)
		r.Post("/api/tasks", s.handleCreateTask)
		r.Put("/api/tasks/{id}/status", s.handleUpdateTaskStatus)

		r.Get("/api/documents", s.handleListDocuments)
		r.Post("/api/documents", s.handleCreateDocument)
		r.Get("/api/documents/{id}/link", s.handleDocumentLink)
		r.Get("/api/events", s.handleListEvents)
		r.Post("/api/events", s.handleCreateEvent)
		r.Get("/api/links", s.handleListLinks)
		r.Post("/api/links", s.handleCreateLink)

		r.Get("/api/notifications", s.handleListNotifications)
		r.Get("/api/notifications/stream", s.handleNotificationStream)
		r.Post("/api/notifications/read-all", s.handleReadAllNotifications)
		r.Post("/api/notifications/{id}/read", s.handleReadNotification)
		r.Delete("/api/notifications/{id}", s.handleDeleteNotification)

		r.Get("/api/preferences/theme", s.handleGetTheme)
		r.Put("/api/preferences/theme", s.handlePutTheme)

		r.Post("/api/logs", s.handleIngestLog)
		r.Post("/api/audit", s.handleLogAction)

		r.Route("/api/admin", func(r chi.Router) {
			r.Use(s.requireAction(rbac.ActionAdmin))
			r.Post("/console/open", s.handleOpenConsole)
			r.Post("/console/close", s.handleCloseConsole)
			r.Get("/users", s.handleListUsers)
			r.Put("/users/{id}/role", s.handleUpdateUserRole)
			r.Get("/audit", s.handleListAudit)
			r.Get("/audit/export", s.handleExportAudit)
			r.Get("/logs", s.handleListSystemLogs)
			r.Get("/integrations", s.handleListIntegrations)
			r.Post("/integrations", s.handleCreateIntegration)
			r.Post("/integrations/{id}/sync", s.handleSyncIntegration)
			r.Get("/notification-settings", s.handleGetSettings)
			r.Put("/notification-settings", s.handlePutSettings)
			r.Post("/broadcast", s.handleBroadcast)
		})
	})
	return r
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{
		"sessions": map[string]any{"status": "ok"},
	}
	if err := s.service.Ping(ctx); err != nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks["sessions"] = map[string]any{
			"status": "error",
			"error":  err.Error(),
		}
	}
	httpx.WriteJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

func (s *HTTPServer) handleCatalog(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"categories": s.service.Portal().Catalog.Categories()})
}

func (s *HTTPServer) handleSessionCreate(w http.ResponseWriter, _ *http.Request) {
	client := s.service.NewClient()
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{
		"clientId":  client.ID(),
		"selection": client.Selection(),
	})
}

func (s *HTTPServer) handleSessionGet(w http.ResponseWriter, r *http.Request) {
	token := tokenFromRequest(r)
	if token == "" {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"authenticated": false, "user": nil})
		return
	}
	session, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"authenticated": false, "user": nil})
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"user":          session.User,
		"clientId":      session.JTI,
		"expiresAt":     session.ExpiresAt.Unix(),
		"adminConsole":  session.Client.AdminConsoleOpen(),
	})
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body LoginInput
	if err := httpx.DecodeBody(r, &body); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	session, err := s.service.Login(r.Context(), body)
	if err != nil {
		s.fail(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"token":     session.Token,
		"clientId":  session.JTI,
		"expiresAt": session.ExpiresAt.Unix(),
		"user":      session.User,
	})
}

func (s *HTTPServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Logout(r.Context(), sessionFrom(r.Context())); err != nil {
		s.logger.Warn("logout", zap.Error(err))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) writeNavigation(w http.ResponseWriter, session Session) {
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"selection": session.Client.Selection(),
		"content":   session.Client.Content(),
	})
}

func (s *HTTPServer) handleNavigation(w http.ResponseWriter, r *http.Request) {
	s.writeNavigation(w, sessionFrom(r.Context()))
}

func (s *HTTPServer) handleSelectTopTab(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Tab string `json:"tab"`
	}
	if err := httpx.DecodeBody(r, &body); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	tab := navigation.Tab(body.Tab)
	if !tab.Known() {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown tab", map[string]any{"tab": body.Tab})
		return
	}
	session := sessionFrom(r.Context())
	session.Client.SelectTopTab(tab)
	s.writeNavigation(w, session)
}

func (s *HTTPServer) handleToggleCategory(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CategoryID string `json:"categoryId"`
	}
	if err := httpx.DecodeBody(r, &body); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	session := sessionFrom(r.Context())
	session.Client.ToggleCategory(body.CategoryID)
	s.writeNavigation(w, session)
}

func (s *HTTPServer) handleSelectSubService(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SubServiceID string `json:"subServiceId"`
		CategoryID   string `json:"categoryId"`
	}
	if err := httpx.DecodeBody(r, &body); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	session := sessionFrom(r.Context())
	session.Client.SelectSubService(body.SubServiceID, body.CategoryID)
	s.writeNavigation(w, session)
}

func (s *HTTPServer) handleSwitchSubService(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SubServiceID string `json:"subServiceId"`
	}
	if err := httpx.DecodeBody(r, &body); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	session := sessionFrom(r.Context())
	session.Client.SwitchSubService(body.SubServiceID)
	s.writeNavigation(w, session)
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	httpx.WriteJSON(w, http.StatusOK, s.service.Search(r.URL.Query().Get("q"), limit))
}

func (s *HTTPServer) handleSearchSelect(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Query        string `json:"query"`
		SubServiceID string `json:"subServiceId"`
	}
	if err := httpx.DecodeBody(r, &body); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	session := sessionFrom(r.Context())
	if _, ok := session.Client.SelectSearchResult(body.Query, body.SubServiceID); !ok {
		httpx.WriteError(w, http.StatusNotFound, "NOT_FOUND", "Sub-service not found", map[string]any{"subServiceId": body.SubServiceID})
		return
	}
	s.writeNavigation(w, session)
}

func (s *HTTPServer) handleListTasks(w http.ResponseWriter, _ *http.Request) {
	tasks := s.service.Portal().Tasks
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"tasks": tasks.List(), "board": tasks.Board()})
}

func (s *HTTPServer) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Priority    string `json:"priority"`
	}
	if err := httpx.DecodeBody(r, &body); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	var priority store.Priority
	if body.Priority != "" {
		p, err := store.ParsePriority(body.Priority)
		if err != nil {
			s.fail(w, err)
			return
		}
		priority = p
	}
	task, ok := sessionFrom(r.Context()).Client.AddTask(body.Title, body.Description, priority)
	if !ok {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, task)
}

func (s *HTTPServer) handleUpdateTaskStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
	}
	if err := httpx.DecodeBody(r, &body); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	status, err := store.ParseStatus(body.Status)
	if err != nil {
		s.fail(w, err)
		return
	}
	id := chi.URLParam(r, "id")
	task, changed, err := sessionFrom(r.Context()).Client.UpdateTaskStatus(id, status)
	if err != nil {
		s.fail(w, err)
		return
	}
	if task.ID == "" {
		httpx.WriteError(w, http.StatusNotFound, "NOT_FOUND", "Task not found", map[string]any{"id": id})
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"task": task, "changed": changed})
}

func (s *HTTPServer) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.DocumentFilter{
		Category:    store.DocumentCategory(q.Get("category")),
		SubCategory: q.Get("subCategory"),
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"documents": s.service.Portal().Data.Documents(q.Get("serviceId"), filter)})
}

func (s *HTTPServer) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	var body portal.NewDocument
	if err := httpx.DecodeBody(r, &body); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	doc, err := sessionFrom(r.Context()).Client.AddDocument(body)
	if err != nil {
		s.fail(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, doc)
}

func (s *HTTPServer) handleDocumentLink(w http.ResponseWriter, r *http.Request) {
	link, err := s.service.DocumentLink(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"url": link})
}

func (s *HTTPServer) handleListEvents(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"events": s.service.Portal().Data.Events(r.URL.Query().Get("serviceId"))})
}

func (s *HTTPServer) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var body portal.NewEvent
	if err := httpx.DecodeBody(r, &body); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	event, err := sessionFrom(r.Context()).Client.AddEvent(body)
	if err != nil {
		s.fail(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, event)
}

func (s *HTTPServer) handleListLinks(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"links": s.service.Portal().Data.Links(r.URL.Query().Get("serviceId"))})
}

func (s *HTTPServer) handleCreateLink(w http.ResponseWriter, r *http.Request) {
	var body portal.NewLink
	if err := httpx.DecodeBody(r, &body); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	link, err := sessionFrom(r.Context()).Client.AddLink(body)
	if err != nil {
		s.fail(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, link)
}

func (s *HTTPServer) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	queue := sessionFrom(r.Context()).Client.Notifications()
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"notifications": queue.List(), "unread": queue.UnreadCount()})
}

func (s *HTTPServer) handleReadAllNotifications(w http.ResponseWriter, r *http.Request) {
	queue := sessionFrom(r.Context()).Client.Notifications()
	marked := queue.MarkAllAsRead()
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"marked": marked, "unread": queue.UnreadCount()})
}

func (s *HTTPServer) handleReadNotification(w http.ResponseWriter, r *http.Request) {
	queue := sessionFrom(r.Context()).Client.Notifications()
	changed := queue.MarkAsRead(chi.URLParam(r, "id"))
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"changed": changed, "unread": queue.UnreadCount()})
}

func (s *HTTPServer) handleDeleteNotification(w http.ResponseWriter, r *http.Request) {
	queue := sessionFrom(r.Context()).Client.Notifications()
	removed := queue.Remove(chi.URLParam(r, "id"))
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"removed": removed, "unread": queue.UnreadCount()})
}

func (s *HTTPServer) handleGetTheme(w http.ResponseWriter, r *http.Request) {
	theme, err := s.service.Theme(r.Context(), sessionFrom(r.Context()).User.ID)
	if err != nil {
		s.fail(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"theme": theme})
}

func (s *HTTPServer) handlePutTheme(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Theme string `json:"theme"`
	}
	if err := httpx.DecodeBody(r, &body); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	theme, err := s.service.SetTheme(r.Context(), sessionFrom(r.Context()).User.ID, body.Theme)
	if err != nil {
		s.fail(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"theme": theme})
}

func (s *HTTPServer) handleIngestLog(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Type      string    `json:"type"`
		Message   string    `json:"message"`
		Timestamp time.Time `json:"timestamp"`
		Source    string    `json:"source"`
	}
	if err := httpx.DecodeBody(r, &body); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	logType := store.LogType(strings.ToLower(body.Type))
	switch logType {
	case store.LogError, store.LogWarning, store.LogInfo, store.LogFeedback:
	default:
		httpx.WriteError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "type must be error, warning, info or feedback", nil)
		return
	}
	if strings.TrimSpace(body.Message) == "" {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "message is required", nil)
		return
	}
	session := sessionFrom(r.Context())
	entry := s.service.Portal().IngestLog(store.SystemLog{
		Type:      logType,
		Message:   body.Message,
		Source:    body.Source,
		UserID:    session.User.ID,
		Timestamp: body.Timestamp,
	})
	s.logger.Info("client log",
		zap.String("type", string(entry.Type)),
		zap.String("user", session.User.ID),
		zap.String("message", entry.Message),
	)
	httpx.WriteJSON(w, http.StatusCreated, entry)
}

func (s *HTTPServer) handleLogAction(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Action   string `json:"action"`
		Details  string `json:"details"`
		Severity string `json:"severity"`
	}
	if err := httpx.DecodeBody(r, &body); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	severity := store.Severity(strings.ToLower(body.Severity))
	switch severity {
	case "":
		severity = store.SeverityInfo
	case store.SeverityInfo, store.SeverityWarning, store.SeverityCritical:
	default:
		httpx.WriteError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "severity must be info, warning or critical", nil)
		return
	}
	if strings.TrimSpace(body.Action) == "" {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "action is required", nil)
		return
	}
	sessionFrom(r.Context()).Client.LogAction(body.Action, body.Details, severity)
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{"ok": true})
}

func (s *HTTPServer) handleOpenConsole(w http.ResponseWriter, r *http.Request) {
	if err := sessionFrom(r.Context()).Client.OpenAdminConsole(); err != nil {
		s.fail(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"open": true})
}

func (s *HTTPServer) handleCloseConsole(w http.ResponseWriter, r *http.Request) {
	sessionFrom(r.Context()).Client.CloseAdminConsole()
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"open": false})
}

func (s *HTTPServer) handleListUsers(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"users": s.service.Portal().Directory.List(), "roles": rbac.Roles})
}

func (s *HTTPServer) handleUpdateUserRole(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Role string `json:"role"`
	}
	if err := httpx.DecodeBody(r, &body); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	role, err := rbac.Parse(body.Role)
	if err != nil {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	user, err := s.service.UpdateUserRole(sessionFrom(r.Context()), chi.URLParam(r, "id"), role)
	if err != nil {
		s.fail(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, user)
}

func (s *HTTPServer) handleListAudit(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r, 50)
	entries, total := s.service.Portal().Audit.Page(limit, offset)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"entries": entries, "total": total, "limit": limit, "offset": offset})
}

func (s *HTTPServer) handleExportAudit(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.fail(w, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	res, err := s.service.ExportAudit(r.Context(), sessionFrom(r.Context()), format, limit)
	if err != nil {
		s.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", res.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Data)
}

func (s *HTTPServer) handleListSystemLogs(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"logs": s.service.Portal().SystemLogs.List()})
}

func (s *HTTPServer) handleListIntegrations(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"integrations": s.service.Portal().Integrations.List()})
}

func (s *HTTPServer) handleCreateIntegration(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
		Type string `json:"type"`
	}
	if err := httpx.DecodeBody(r, &body); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	typ := store.IntegrationType(strings.ToUpper(body.Type))
	switch typ {
	case store.IntegrationOAuth, store.IntegrationODBC, store.IntegrationAPI:
	default:
		httpx.WriteError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "type must be OAUTH, ODBC or API", nil)
		return
	}
	if strings.TrimSpace(body.Name) == "" {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
		return
	}
	session := sessionFrom(r.Context())
	item := s.service.Portal().Integrations.Add(body.Name, typ)
	session.Client.LogAction("Integration Added", fmt.Sprintf("Added %s integration %q", typ, item.Name), store.SeverityInfo)
	httpx.WriteJSON(w, http.StatusCreated, item)
}

func (s *HTTPServer) handleSyncIntegration(w http.ResponseWriter, r *http.Request) {
	item, err := s.service.Portal().Integrations.Sync(chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	sessionFrom(r.Context()).Client.LogAction("Integration Sync", fmt.Sprintf("Synced integration %q", item.Name), store.SeverityInfo)
	httpx.WriteJSON(w, http.StatusOK, item)
}

func (s *HTTPServer) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, s.service.Portal().Settings.Get())
}

func (s *HTTPServer) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var body store.NotificationSettings
	if err := httpx.DecodeBody(r, &body); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	updated := s.service.Portal().Settings.Set(body)
	sessionFrom(r.Context()).Client.LogAction("Settings Update", "Updated global notification settings", store.SeverityWarning)
	httpx.WriteJSON(w, http.StatusOK, updated)
}

func (s *HTTPServer) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	}
	if err := httpx.DecodeBody(r, &body); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if strings.TrimSpace(body.Message) == "" {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "message is required", nil)
		return
	}
	typ := store.NotificationType(strings.ToLower(body.Type))
	switch typ {
	case "":
		typ = store.NotifyInfo
	case store.NotifySuccess, store.NotifyError, store.NotifyInfo, store.NotifyWarning:
	default:
		httpx.WriteError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "type must be success, error, info or warning", nil)
		return
	}
	delivered := s.service.Broadcast(sessionFrom(r.Context()), body.Message, typ)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"delivered": delivered})
}

// fail maps err to the JSON error envelope; unexpected errors are logged.
func (s *HTTPServer) fail(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("code", code), zap.Error(err))
	}
	httpx.WriteError(w, status, code, message, details)
}

type sessionKey struct{}

func sessionFrom(ctx context.Context) Session {
	session, _ := ctx.Value(sessionKey{}).(Session)
	return session
}

func (s *HTTPServer) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := tokenFromRequest(r)
		if token == "" {
			httpx.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
			return
		}
		session, err := s.service.SessionFromToken(r.Context(), token)
		if err != nil {
			s.fail(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, session)))
	})
}

// requireAction gates a route on the role the session signed in with.
func (s *HTTPServer) requireAction(action rbac.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := sessionFrom(r.Context())
			if !rbac.Can(session.User.Role, action) {
				s.logger.Info("forbidden",
					zap.String("user", session.User.ID),
					zap.String("role", string(session.User.Role)),
					zap.String("path", r.URL.Path),
				)
				httpx.WriteError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *HTTPServer) limitSessions(next http.Handler) http.Handler {
	if s.sessionLimits == nil {
		return next
	}
	return s.sessionLimits.Middleware(nil, nil)(next)
}

func (s *HTTPServer) limitLogins(next http.Handler) http.Handler {
	if s.loginLimits == nil {
		return next
	}
	return s.loginLimits.Middleware(nil, func(*http.Request) {
		if s.metrics != nil {
			s.metrics.ObserveLogin(metrics.LoginLimited)
		}
	})(next)
}

// tokenFromRequest reads the bearer header, falling back to the access_token
// query parameter for WebSocket handshakes, which cannot carry headers from a
// browser.
func tokenFromRequest(r *http.Request) string {
	if token := httpx.BearerToken(r); token != "" {
		return token
	}
	if websocket.IsWebSocketUpgrade(r) {
		return strings.TrimSpace(r.URL.Query().Get("access_token"))
	}
	return ""
}

func pageParams(r *http.Request, defaultLimit int) (limit, offset int) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = defaultLimit
	}
	if limit > 500 {
		limit = 500
	}
	offset, err = strconv.Atoi(r.URL.Query().Get("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}
