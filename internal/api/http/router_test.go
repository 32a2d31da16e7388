package http

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	stdhttp "net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/ticketdesk/internal/api/http/handlers"
	"github.com/spec-kit/ticketdesk/internal/auth"
	"github.com/spec-kit/ticketdesk/internal/config"
	"github.com/spec-kit/ticketdesk/internal/domain"
	"github.com/spec-kit/ticketdesk/internal/events"
	"github.com/spec-kit/ticketdesk/internal/observability"
	"github.com/spec-kit/ticketdesk/internal/persistence"
	"github.com/spec-kit/ticketdesk/internal/render"
	"github.com/spec-kit/ticketdesk/internal/repository"
	"github.com/spec-kit/ticketdesk/internal/service"
	"github.com/spec-kit/ticketdesk/internal/ticketapi"
)

const issuerKey = "login-system-key"

// upstream is a fake remote ticket API holding one ticket.
type upstream struct {
	mu         sync.Mutex
	ticket     map[string]any
	gets       int
	failUpdate bool
	forwarded  url.Values
	imageName  string
}

func (u *upstream) handler(t *testing.T) stdhttp.HandlerFunc {
	return func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		u.mu.Lock()
		defer u.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/get_ticket.php":
			u.gets++
			_ = json.NewEncoder(w).Encode(u.ticket)
		case "/update_ticket.php":
			if u.failUpdate {
				w.WriteHeader(stdhttp.StatusConflict)
				_, _ = io.WriteString(w, `{"message":"Ticket is locked"}`)
				return
			}
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			u.ticket["Status"] = body["Status"]
			_, _ = io.WriteString(w, `{"message":"updated"}`)
		case "/update_status_with_subticket.php":
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				t.Errorf("ParseMultipartForm: %v", err)
			}
			u.forwarded = r.MultipartForm.Value
			if files := r.MultipartForm.File["Image"]; len(files) == 1 {
				u.imageName = files[0].Filename
			}
			_, _ = io.WriteString(w, `{"message":"forwarded"}`)
		default:
			w.WriteHeader(stdhttp.StatusNotFound)
			_, _ = io.WriteString(w, `{"message":"unknown endpoint"}`)
		}
	}
}

type testApp struct {
	app      *fiber.App
	upstream *upstream
	sessions *service.SessionService
}

func newTestApp(t *testing.T, ticket map[string]any) *testApp {
	t.Helper()
	up := &upstream{ticket: ticket}
	server := httptest.NewServer(up.handler(t))
	t.Cleanup(server.Close)

	logger := zap.NewNop()
	hash, err := auth.HashIssuerKey(issuerKey, 4)
	if err != nil {
		t.Fatal(err)
	}
	authCfg := config.AuthConfig{JWTSecret: "test-secret", SessionTTLMinutes: 30, IssuerKeyHash: hash}

	client := ticketapi.NewClient(config.UpstreamConfig{BaseURL: server.URL, TimeoutSeconds: 5}, logger)
	sessionStore := repository.NewMemorySessionStore()
	dispatcher := events.NewInMemoryDispatcher(logger)
	journal := service.NewJournalService(dispatcher, repository.NewMemoryActionRepository(100), logger)
	journal.RegisterHandlers()
	policy := auth.DefaultPolicy()

	views := service.NewTicketViewService(service.TicketViewDependencies{
		API:           client,
		Views:         repository.NewMemoryViewStore(),
		Policy:        policy,
		Dispatcher:    dispatcher,
		Logger:        logger,
		MaxImageBytes: 1 << 20,
	})
	sessions := service.NewSessionService(authCfg, sessionStore)
	renderer, err := render.New("ticketdesk", true)
	if err != nil {
		t.Fatal(err)
	}
	metrics := observability.NewMetrics()

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, renderer, 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("ticketdesk", "test", &persistence.Postgres{}, &persistence.Redis{}, client, metrics),
		Tickets:        handlers.NewTicketViewHandler(views, journal, renderer, 1<<20),
		Sessions:       handlers.NewSessionHandler(sessions, false),
		AuthMiddleware: auth.NewAuthMiddleware(sessions.TokenManager(), sessionStore),
		Policy:         policy,
	})
	return &testApp{app: app, upstream: up, sessions: sessions}
}

func openTicketPayload(empID, category string) map[string]any {
	return map[string]any{
		"id":             42,
		"EmpId":          empID,
		"Category":       category,
		"Remark":         "<p>Keyboard <b>dead</b></p>",
		"Status":         "Open",
		"DateTime":       "2024-05-01 09:30:00",
		"UpdateDateTime": "",
		"Update_remark":  "",
		"Image":          "",
	}
}

// login opens a session through POST /session and returns the token.
func (ta *testApp) login(t *testing.T, empID string, role domain.Role) string {
	t.Helper()
	body := `{"userDetails":{"EmpId":"` + empID + `","Role":"` + string(role) + `","Name":"Test"}}`
	req := httptest.NewRequest(fiber.MethodPost, "/session", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(handlers.IssuerKeyHeader, issuerKey)
	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("POST /session = %d", resp.StatusCode)
	}
	var out struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	return out.Data.Token
}

func (ta *testApp) do(t *testing.T, req *stdhttp.Request, token string) (int, string) {
	t.Helper()
	if token != "" {
		req.AddCookie(&stdhttp.Cookie{Name: auth.SessionCookie, Value: token})
	}
	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestTicketPageRequiresSession(t *testing.T) {
	ta := newTestApp(t, openTicketPayload("E-1", "Hardware"))
	status, body := ta.do(t, httptest.NewRequest(fiber.MethodGet, "/tickets/42", nil), "")
	if status != fiber.StatusUnauthorized {
		t.Errorf("status = %d", status)
	}
	if !strings.Contains(body, "<html") || !strings.Contains(body, "missing session") {
		t.Errorf("expected html error page, got %s", body)
	}

	status, body = ta.do(t, httptest.NewRequest(fiber.MethodGet, "/api/tickets/42", nil), "")
	if status != fiber.StatusUnauthorized || !strings.Contains(body, `"UNAUTHORIZED"`) {
		t.Errorf("api = %d %s", status, body)
	}
}

func TestSessionRejectsWrongIssuerKey(t *testing.T) {
	ta := newTestApp(t, openTicketPayload("E-1", "Hardware"))
	req := httptest.NewRequest(fiber.MethodPost, "/session", strings.NewReader(`{"userDetails":{"EmpId":"E-1","Role":"Admin"}}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(handlers.IssuerKeyHeader, "nope")
	if status, _ := ta.do(t, req, ""); status != fiber.StatusUnauthorized {
		t.Errorf("status = %d", status)
	}
}

func TestUnauthorizedViewerSeesMessage(t *testing.T) {
	ta := newTestApp(t, openTicketPayload("E-1", "Hardware"))
	token := ta.login(t, "E-2", domain.RoleEmployee)

	status, body := ta.do(t, httptest.NewRequest(fiber.MethodGet, "/tickets/42", nil), token)
	if status != fiber.StatusOK {
		t.Errorf("status = %d", status)
	}
	if !strings.Contains(body, service.MsgNotAuthorized) || strings.Contains(body, "Keyboard") {
		t.Errorf("body = %s", body)
	}
}

func TestNullTicketBodyShowsFetchFailure(t *testing.T) {
	ta := newTestApp(t, nil)
	token := ta.login(t, "A-1", domain.RoleAdmin)

	status, body := ta.do(t, httptest.NewRequest(fiber.MethodGet, "/tickets/42", nil), token)
	if status != fiber.StatusOK {
		t.Errorf("status = %d", status)
	}
	if !strings.Contains(body, service.MsgFetchFailed) || strings.Contains(body, "Employee ID") {
		t.Errorf("body = %s", body)
	}
}

func TestResolveThroughPages(t *testing.T) {
	ta := newTestApp(t, openTicketPayload("E-1", "Hardware"))
	token := ta.login(t, "A-1", domain.RoleAdmin)

	status, body := ta.do(t, httptest.NewRequest(fiber.MethodGet, "/tickets/42", nil), token)
	if status != fiber.StatusOK || !strings.Contains(body, "Resolve Ticket") {
		t.Fatalf("GET = %d %s", status, body)
	}

	form := url.Values{"remark": {"Swapped keyboard"}}
	req := httptest.NewRequest(fiber.MethodPost, "/tickets/42/resolve", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	status, body = ta.do(t, req, token)
	if status != fiber.StatusOK {
		t.Fatalf("POST resolve = %d", status)
	}
	if !strings.Contains(body, service.MsgResolved) || !strings.Contains(body, `<dd class="status">Resolved</dd>`) {
		t.Errorf("body = %s", body)
	}
	if strings.Contains(body, "Resolve Ticket") {
		t.Error("resolve section still offered")
	}
	if ta.upstream.gets != 1 {
		t.Errorf("upstream reads = %d, want one per mount", ta.upstream.gets)
	}
}

func TestResolveFailureJSON(t *testing.T) {
	ta := newTestApp(t, openTicketPayload("E-1", "Software"))
	ta.upstream.failUpdate = true
	token := ta.login(t, "A-1", domain.RoleAdmin)

	req := httptest.NewRequest(fiber.MethodPost, "/api/tickets/42/resolve", strings.NewReader(`{"remark":"try"}`))
	req.Header.Set("Content-Type", "application/json")
	status, body := ta.do(t, req, token)
	if status != fiber.StatusOK {
		t.Fatalf("status = %d %s", status, body)
	}
	var out struct {
		Data struct {
			Ticket struct {
				Status string `json:"status"`
			} `json:"ticket"`
			Notice struct {
				Success bool   `json:"success"`
				Message string `json:"message"`
			} `json:"notice"`
			ResolveRemark string `json:"resolve_remark"`
		} `json:"data"`
	}
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		t.Fatal(err)
	}
	if out.Data.Ticket.Status != "Open" || out.Data.ResolveRemark != "try" {
		t.Errorf("view changed: %+v", out.Data)
	}
	if out.Data.Notice.Success || out.Data.Notice.Message != "Ticket is locked" {
		t.Errorf("notice = %+v", out.Data.Notice)
	}
}

func TestForwardWithImage(t *testing.T) {
	ta := newTestApp(t, openTicketPayload("E-1", "ERP365"))
	token := ta.login(t, "X-1", domain.RoleERPAdmin)

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	_ = form.WriteField("remark", "Posting fails")
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="image"; filename="crash.png"`)
	header.Set("Content-Type", "image/png")
	part, _ := form.CreatePart(header)
	_, _ = part.Write([]byte("\x89PNG\r\n\x1a\nrest"))
	_ = form.Close()

	req := httptest.NewRequest(fiber.MethodPost, "/tickets/42/forward", &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	status, body := ta.do(t, req, token)
	if status != fiber.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if !strings.Contains(body, service.MsgForwarded) || !strings.Contains(body, `<dd class="update-remark"><p>Posting fails</p>`) {
		t.Errorf("body = %s", body)
	}
	if ta.upstream.forwarded.Get("Status") != "Forward to L2" || ta.upstream.imageName != "crash.png" {
		t.Errorf("upstream saw %v / %q", ta.upstream.forwarded, ta.upstream.imageName)
	}
}

func TestActionsJournalRequiresViewerRole(t *testing.T) {
	ta := newTestApp(t, openTicketPayload("E-1", "Hardware"))
	employee := ta.login(t, "E-1", domain.RoleEmployee)
	admin := ta.login(t, "A-1", domain.RoleAdmin)

	ta.do(t, httptest.NewRequest(fiber.MethodGet, "/api/tickets/42", nil), employee)

	if status, _ := ta.do(t, httptest.NewRequest(fiber.MethodGet, "/api/tickets/42/actions", nil), employee); status != fiber.StatusForbidden {
		t.Errorf("employee status = %d", status)
	}
	status, body := ta.do(t, httptest.NewRequest(fiber.MethodGet, "/api/tickets/42/actions", nil), admin)
	if status != fiber.StatusOK || !strings.Contains(body, `"action":"view"`) {
		t.Errorf("admin = %d %s", status, body)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	ta := newTestApp(t, openTicketPayload("E-1", "Hardware"))
	token := ta.login(t, "E-1", domain.RoleEmployee)

	if status, _ := ta.do(t, httptest.NewRequest(fiber.MethodDelete, "/session", nil), token); status != fiber.StatusNoContent {
		t.Fatalf("DELETE /session = %d", status)
	}
	status, body := ta.do(t, httptest.NewRequest(fiber.MethodGet, "/api/tickets/42", nil), token)
	if status != fiber.StatusUnauthorized || !strings.Contains(body, "session expired") {
		t.Errorf("after logout = %d %s", status, body)
	}
}

func TestHealthEndpoints(t *testing.T) {
	ta := newTestApp(t, openTicketPayload("E-1", "Hardware"))
	if status, _ := ta.do(t, httptest.NewRequest(fiber.MethodGet, "/health/live", nil), ""); status != fiber.StatusOK {
		t.Errorf("live = %d", status)
	}
	status, body := ta.do(t, httptest.NewRequest(fiber.MethodGet, "/health/ready", nil), "")
	if status != fiber.StatusOK || !strings.Contains(body, `"redis":"memory"`) {
		t.Errorf("ready = %d %s", status, body)
	}
	status, body = ta.do(t, httptest.NewRequest(fiber.MethodGet, "/health/metrics", nil), "")
	if status != fiber.StatusOK || !strings.Contains(body, "/health/ready|GET|200") {
		t.Errorf("metrics = %d %s", status, body)
	}
}
