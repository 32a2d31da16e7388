package render

import (
	"bytes"
	"embed"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/flosch/pongo2/v6"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"

	"github.com/spec-kit/ticketdesk/internal/domain"
)

// TimestampLayout is the display format of ticket timestamps.
const TimestampLayout = "02 Jan 2006, 15:04:05"

//go:embed templates/*.html
var templateFiles embed.FS

// Renderer turns ticket views into HTML pages.
type Renderer struct {
	appName      string
	detail       *pongo2.Template
	errorPage    *pongo2.Template
	text         goldmark.Markdown
	allowRawHTML bool
}

// New compiles the embedded templates. allowRawHTML lets remarks stored as
// HTML pass through to the page untouched.
func New(appName string, allowRawHTML bool) (*Renderer, error) {
	set := pongo2.NewSet("ticketdesk", pongo2.MustNewLocalFileSystemLoader(""))

	detail, err := compile(set, "ticket_detail.html")
	if err != nil {
		return nil, err
	}
	errorPage, err := compile(set, "error.html")
	if err != nil {
		return nil, err
	}

	return &Renderer{
		appName:      appName,
		detail:       detail,
		errorPage:    errorPage,
		text:         newPlainTextMarkdown(),
		allowRawHTML: allowRawHTML,
	}, nil
}

// newPlainTextMarkdown builds a goldmark pipeline that only splits text into
// paragraphs, keeps line breaks and links bare URLs. Headings, code blocks,
// emphasis and inline HTML are left as literal text, since remarks are typed
// by people who never meant them as markdown.
func newPlainTextMarkdown() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithParser(parser.NewParser(
			parser.WithBlockParsers(util.Prioritized(parser.NewParagraphParser(), 1000)),
		)),
		goldmark.WithExtensions(extension.Linkify),
		goldmark.WithRendererOptions(html.WithHardWraps()),
	)
}

func compile(set *pongo2.TemplateSet, name string) (*pongo2.Template, error) {
	src, err := templateFiles.ReadFile("templates/" + name)
	if err != nil {
		return nil, fmt.Errorf("read template %s: %w", name, err)
	}
	tpl, err := set.FromBytes(src)
	if err != nil {
		return nil, fmt.Errorf("compile template %s: %w", name, err)
	}
	return tpl, nil
}

// TicketPage renders the ticket detail page for a view in any state.
func (r *Renderer) TicketPage(view *domain.TicketView) (string, error) {
	ctx := pongo2.Context{
		"app_name":  r.appName,
		"ticket_id": view.TicketID,
		"state":     string(view.State),
	}
	if view.Notice != nil {
		ctx["notice_message"] = view.Notice.Message
		ctx["notice_success"] = view.Notice.Success
	}

	switch {
	case view.State == domain.ViewStateError:
		ctx["error_kind"] = string(view.ErrorKind)
		ctx["error_message"] = view.ErrorMessage
	case view.IsLoaded():
		ticket := view.Ticket
		remark, err := r.Remark(ticket.Remark)
		if err != nil {
			return "", err
		}
		escapedID := url.PathEscape(view.TicketID)
		ctx["emp_id"] = ticket.EmpID
		ctx["category"] = string(ticket.Category)
		ctx["remark_html"] = remark
		ctx["status"] = string(ticket.Status)
		ctx["created_at"] = FormatTimestamp(ticket.CreatedAt)
		ctx["updated_at"] = FormatTimestamp(ticket.UpdatedAt)
		updateRemark, err := r.Remark(ticket.UpdateRemark)
		if err != nil {
			return "", err
		}
		ctx["update_remark_html"] = updateRemark
		ctx["image_url"] = ticket.Image
		ctx["can_resolve"] = view.Actions.CanResolve
		ctx["can_forward"] = view.Actions.CanForward
		ctx["resolve_path"] = "/tickets/" + escapedID + "/resolve"
		ctx["forward_path"] = "/tickets/" + escapedID + "/forward"
		ctx["resolve_remark"] = view.ResolveRemark
		ctx["forward_remark"] = view.ForwardRemark
		ctx["forward_image_name"] = view.ForwardImageName
	default:
		ctx["state"] = string(domain.ViewStateLoading)
	}

	return r.detail.Execute(ctx)
}

// ErrorPage renders a standalone error page.
func (r *Renderer) ErrorPage(status int, code, message string) (string, error) {
	title := http.StatusText(status)
	if title == "" {
		title = "Error"
	}
	return r.errorPage.Execute(pongo2.Context{
		"app_name": r.appName,
		"status":   status,
		"title":    title,
		"code":     code,
		"message":  message,
	})
}

// Remark converts a stored remark to HTML. Remarks that already are HTML are
// returned as is when raw HTML is allowed; anything else is escaped and
// wrapped in paragraphs.
func (r *Renderer) Remark(src string) (string, error) {
	trimmed := strings.TrimSpace(src)
	if trimmed == "" {
		return "-", nil
	}
	if r.allowRawHTML && strings.HasPrefix(trimmed, "<") {
		return src, nil
	}
	var buf bytes.Buffer
	if err := r.text.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("render remark: %w", err)
	}
	return buf.String(), nil
}

// FormatTimestamp formats t for display; the zero time renders as "-".
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(TimestampLayout)
}
