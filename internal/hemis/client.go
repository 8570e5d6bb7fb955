package hemis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/Spok95/mini-hemis/internal/ctxutil"
	"github.com/Spok95/mini-hemis/internal/logging"
	"github.com/Spok95/mini-hemis/internal/metrics"
	"github.com/Spok95/mini-hemis/internal/models"
)

const (
	pathLogin    = "/v1/auth/login"
	pathAccount  = "/v1/account/me"
	pathSchedule = "/v1/education/schedule"

	DefaultOrigin  = "https://student.urdu.uz"
	DefaultTimeout = 15 * time.Second

	maxBody = 8 << 20
)

type Config struct {
	BaseURL  string
	Origin   string
	Timeout  time.Duration
	Throttle ThrottleConfig
	// HTTPClient подменяется в тестах; по умолчанию http.Client с Timeout.
	HTTPClient *http.Client
}

// Client — тонкая обёртка над REST HEMIS. Каждый метод — ровно один HTTP-запрос, без повторов.
type Client struct {
	base     string
	origin   string
	http     *http.Client
	throttle *Throttle
	log      *zap.Logger
}

func New(cfg Config, log *zap.Logger) *Client {
	if cfg.Origin == "" {
		cfg.Origin = DefaultOrigin
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		base:     strings.TrimRight(cfg.BaseURL, "/"),
		origin:   cfg.Origin,
		http:     hc,
		throttle: NewThrottle(cfg.Throttle),
		log:      logging.OrNop(log).Named("hemis"),
	}
}

// Authenticate получает токен. Любой отказ (сеть, статус, флаг, пустой токен) — ErrAuthFailure.
func (c *Client) Authenticate(ctx context.Context, login, secret string) (string, error) {
	const op = "authenticate"
	body, err := json.Marshal(loginRequest{Login: login, Password: secret})
	if err != nil {
		return "", &Error{Op: op, Kind: KindAuthFailure, Err: err}
	}
	env, err := c.do(ctx, ClassAuth, op, http.MethodPost, pathLogin, "", body)
	if err != nil {
		return "", asAuthFailure(err)
	}
	var d loginData
	if err := json.Unmarshal(env.Data, &d); err != nil {
		return "", &Error{Op: op, Kind: KindAuthFailure, Msg: "malformed login data", Err: err}
	}
	if strings.TrimSpace(d.Token) == "" {
		return "", &Error{Op: op, Kind: KindAuthFailure, Msg: "no token in response"}
	}
	return d.Token, nil
}

// FetchProfile — ФИО, признак студента и группа.
func (c *Client) FetchProfile(ctx context.Context, token string) (models.Profile, error) {
	acc, err := c.fetchAccount(ctx, "profile", token)
	if err != nil {
		return models.Profile{}, err
	}
	p := models.Profile{
		IsStudent: strings.TrimSpace(string(acc.StudentIDNumber)) != "",
	}
	if acc.FullName != nil {
		p.FullName = strings.TrimSpace(*acc.FullName)
	}
	if g := acc.Group.NameOr(""); g != "" {
		p.GroupName = &g
	}
	if acc.Semester != nil && acc.Semester.Code != "" {
		code := string(acc.Semester.Code)
		p.SemesterCode = &code
	}
	return p, nil
}

// FetchCurrentSemester — код семестра из профиля; ErrNotFound, если семестра нет.
func (c *Client) FetchCurrentSemester(ctx context.Context, token string) (SemesterCode, error) {
	const op = "semester"
	acc, err := c.fetchAccount(ctx, op, token)
	if err != nil {
		return "", err
	}
	if acc.Semester == nil || strings.TrimSpace(string(acc.Semester.Code)) == "" {
		return "", &Error{Op: op, Kind: KindNotFound, Msg: "no active semester on profile"}
	}
	return SemesterCode(strings.TrimSpace(string(acc.Semester.Code))), nil
}

// FetchTimetable — сырые строки расписания за семестр. Нераспознанные строки пропускаются.
func (c *Client) FetchTimetable(ctx context.Context, token string, semester SemesterCode) ([]RawTimetableRow, error) {
	const op = "timetable"
	path := pathSchedule + "?semester=" + url.QueryEscape(string(semester))
	env, err := c.do(ctx, ClassData, op, http.MethodGet, path, token, nil)
	if err != nil {
		return nil, err
	}
	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, &Error{Op: op, Kind: KindUpstream, Msg: "no data in response"}
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &Error{Op: op, Kind: KindUpstream, Msg: "data is not a list", Err: err}
	}
	rows := make([]RawTimetableRow, 0, len(raw))
	skipped := 0
	for _, r := range raw {
		var row RawTimetableRow
		if err := json.Unmarshal(r, &row); err != nil {
			skipped++
			continue
		}
		rows = append(rows, row)
	}
	if skipped > 0 {
		c.log.Warn("timetable rows skipped", zap.Int("skipped", skipped), zap.Int("total", len(raw)))
	}
	return rows, nil
}

func (c *Client) fetchAccount(ctx context.Context, op, token string) (accountData, error) {
	env, err := c.do(ctx, ClassData, op, http.MethodGet, pathAccount, token, nil)
	if err != nil {
		return accountData{}, err
	}
	var acc accountData
	if err := json.Unmarshal(env.Data, &acc); err != nil {
		return accountData{}, &Error{Op: op, Kind: KindUpstream, Msg: "malformed account data", Err: err}
	}
	return acc, nil
}

// do — один запрос и классификация ответа. Возвращает конверт только при success:true.
func (c *Client) do(ctx context.Context, class EndpointClass, op, method, path, token string, body []byte) (env envelope, err error) {
	start := time.Now()
	status := 0
	defer func() {
		outcome := "ok"
		if err != nil {
			k, _ := KindOf(err)
			outcome = k.String()
		}
		metrics.ObserveUpstream(op, outcome, time.Since(start))
		c.log.Debug("hemis call", append(ctxutil.LogFields(ctx),
			zap.String("endpoint", op),
			zap.Int("status", status),
			zap.String("outcome", outcome),
			zap.Duration("took", time.Since(start)),
		)...)
	}()

	if err := c.throttle.Wait(ctx, class); err != nil {
		return envelope{}, &Error{Op: op, Kind: KindUpstream, Msg: "throttle wait aborted", Err: err}
	}

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return envelope{}, &Error{Op: op, Kind: KindUpstream, Msg: "build request", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Origin", c.origin)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return envelope{}, &Error{Op: op, Kind: KindUpstream, Msg: "transport", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	status = resp.StatusCode

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return envelope{}, &Error{Op: op, Kind: KindUpstream, Status: status, Msg: "read body", Err: err}
	}

	if status == http.StatusUnauthorized {
		return envelope{}, &Error{Op: op, Kind: KindUnauthorized, Status: status}
	}
	if !isJSON(resp.Header.Get("Content-Type")) {
		return envelope{}, &Error{Op: op, Kind: KindUpstream, Status: status,
			Msg: "non-JSON response: " + summarize(resp.Header.Get("Content-Type"), raw)}
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return envelope{}, &Error{Op: op, Kind: KindUpstream, Status: status, Msg: "malformed body", Err: err}
	}
	if env.authRejected() && !env.ok() {
		return envelope{}, &Error{Op: op, Kind: KindUnauthorized, Status: status, Msg: env.errorText()}
	}
	if status/100 != 2 {
		return envelope{}, &Error{Op: op, Kind: KindUpstream, Status: status, Msg: env.errorText()}
	}
	if env.Success == nil {
		return envelope{}, &Error{Op: op, Kind: KindUpstream, Status: status, Msg: "missing success flag"}
	}
	if !env.ok() {
		return envelope{}, &Error{Op: op, Kind: KindUpstream, Status: status, Msg: env.errorText()}
	}
	return env, nil
}

func asAuthFailure(err error) error {
	var he *Error
	if errors.As(err, &he) {
		cp := *he
		cp.Kind = KindAuthFailure
		return &cp
	}
	return &Error{Op: "authenticate", Kind: KindAuthFailure, Err: err}
}

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}

// summarize — короткое описание не-JSON ответа: title HTML-страницы или начало тела.
func summarize(contentType string, body []byte) string {
	if strings.Contains(strings.ToLower(contentType), "html") {
		if doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body)); err == nil {
			title := strings.TrimSpace(doc.Find("title").First().Text())
			if title == "" {
				title = strings.TrimSpace(doc.Find("h1").First().Text())
			}
			if title != "" {
				return clip(title, 120)
			}
		}
	}
	s := strings.Join(strings.Fields(string(body)), " ")
	if s == "" {
		return fmt.Sprintf("empty %q body", contentType)
	}
	return clip(s, 120)
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
