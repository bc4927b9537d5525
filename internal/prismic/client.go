// prismic — клиент REST API v2 headless CMS Prismic.
//
// Клиент создаётся один раз на старте и передаётся во все потоки данных.
// master ref кэшируется на RefTTL и обновляется через singleflight;
// явный ref (preview) всегда важнее master.
package prismic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/pribylovaa/go-spacetraveling/internal/config"
	"github.com/pribylovaa/go-spacetraveling/pkg/log"
	"github.com/pribylovaa/go-spacetraveling/pkg/redact"
)

var (
	// ErrNotFound — документ отсутствует.
	ErrNotFound = errors.New("document not found")
	// ErrForeignCursor — курсор страницы указывает не на наш репозиторий.
	ErrForeignCursor = errors.New("foreign page cursor")
	// ErrNoMasterRef — в корне API нет master ref.
	ErrNoMasterRef = errors.New("master ref not found")
)

// StatusError — неуспешный HTTP-статус от CMS.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return "prismic: status " + strconv.Itoa(e.Code)
	}

	return "prismic: status " + strconv.Itoa(e.Code) + ": " + e.Body
}

// Client — клиент одного репозитория.
type Client struct {
	endpoint *url.URL
	token    string
	refTTL   time.Duration
	http     *http.Client
	now      func() time.Time

	mu        sync.Mutex
	master    string
	fetchedAt time.Time
	sf        singleflight.Group
}

// New создаёт клиента. hc настраивается извне (транспорт с интерсепторами).
func New(cfg config.PrismicConfig, hc *http.Client) (*Client, error) {
	const op = "prismic.New"

	u, err := url.Parse(strings.TrimRight(cfg.Endpoint, "/"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%s: endpoint %q must be absolute", op, cfg.Endpoint)
	}

	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}

	return &Client{
		endpoint: u,
		token:    cfg.AccessToken,
		refTTL:   cfg.RefTTL,
		http:     hc,
		now:      time.Now,
	}, nil
}

// MasterRef возвращает актуальный master ref (с кэшем на RefTTL).
func (c *Client) MasterRef(ctx context.Context) (string, error) {
	const op = "prismic.MasterRef"

	c.mu.Lock()
	if c.master != "" && c.refTTL > 0 && c.now().Sub(c.fetchedAt) < c.refTTL {
		ref := c.master
		c.mu.Unlock()
		return ref, nil
	}
	c.mu.Unlock()

	v, err, _ := c.sf.Do("master", func() (any, error) {
		u := *c.endpoint
		u.RawQuery = c.withToken(url.Values{}).Encode()

		var root apiRoot
		if err := c.get(ctx, u.String(), &root); err != nil {
			return "", err
		}

		for _, r := range root.Refs {
			if r.IsMasterRef {
				c.mu.Lock()
				c.master = r.Ref
				c.fetchedAt = c.now()
				c.mu.Unlock()
				return r.Ref, nil
			}
		}

		return "", ErrNoMasterRef
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return v.(string), nil
}

// Query ищет документы.
func (c *Client) Query(ctx context.Context, q Query) (*SearchResponse, error) {
	const op = "prismic.Query"

	ref := q.Ref
	if ref == "" {
		var err error
		if ref, err = c.MasterRef(ctx); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	params := url.Values{}
	params.Set("ref", ref)
	if len(q.Predicates) > 0 {
		params.Set("q", "["+strings.Join(q.Predicates, "")+"]")
	}
	if q.PageSize > 0 {
		params.Set("pageSize", strconv.Itoa(q.PageSize))
	}
	if o := encodeOrderings(q.Orderings); o != "" {
		params.Set("orderings", o)
	}
	if q.After != "" {
		params.Set("after", q.After)
	}
	if len(q.Fetch) > 0 {
		params.Set("fetch", strings.Join(q.Fetch, ","))
	}

	u := c.searchURL()
	u.RawQuery = c.withToken(params).Encode()

	var resp SearchResponse
	if err := c.get(ctx, u.String(), &resp); err != nil {
		if q.Ref == "" {
			c.dropStaleRef(err)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	stripToken(&resp)

	log.From(ctx).Debug("prismic_query_ok",
		slog.String("op", op),
		slog.Int("results", len(resp.Results)),
		slog.Bool("has_next_page", resp.NextPage != ""),
	)

	return &resp, nil
}

// GetByUID возвращает документ типа typ по слагу.
func (c *Client) GetByUID(ctx context.Context, typ, uid string, opts Options) (*Document, error) {
	const op = "prismic.GetByUID"

	doc, err := c.getSingle(ctx, At("my."+typ+".uid", uid), opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return doc, nil
}

// GetByID возвращает документ по id.
func (c *Client) GetByID(ctx context.Context, id string, opts Options) (*Document, error) {
	const op = "prismic.GetByID"

	doc, err := c.getSingle(ctx, At("document.id", id), opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return doc, nil
}

// FetchPage загружает страницу по абсолютному курсору next_page.
// Курсор должен указывать на поиск этого же репозитория.
func (c *Client) FetchPage(ctx context.Context, pageURL string) (*SearchResponse, error) {
	const op = "prismic.FetchPage"

	u, err := url.Parse(pageURL)
	if err != nil || !c.ownsSearchURL(u) {
		return nil, fmt.Errorf("%s: %w", op, ErrForeignCursor)
	}

	u.RawQuery = c.withToken(u.Query()).Encode()

	var resp SearchResponse
	if err := c.get(ctx, u.String(), &resp); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	stripToken(&resp)
	return &resp, nil
}

func (c *Client) getSingle(ctx context.Context, predicate string, opts Options) (*Document, error) {
	resp, err := c.Query(ctx, Query{
		Predicates: []string{predicate},
		PageSize:   1,
		Fetch:      opts.Fetch,
		Ref:        opts.Ref,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Results) == 0 {
		return nil, ErrNotFound
	}

	return &resp.Results[0], nil
}

func (c *Client) searchURL() url.URL {
	u := *c.endpoint
	u.Path = strings.TrimRight(u.Path, "/") + "/documents/search"
	return u
}

func (c *Client) ownsSearchURL(u *url.URL) bool {
	own := c.searchURL()
	return u.Scheme == own.Scheme && strings.EqualFold(u.Host, own.Host) && u.Path == own.Path
}

// stripToken убирает access_token из курсоров: Prismic строит next_page/prev_page
// из исходного запроса, а курсоры уходят в браузер. FetchPage добавит токен обратно.
func stripToken(resp *SearchResponse) {
	resp.NextPage = withoutToken(resp.NextPage)
	resp.PrevPage = withoutToken(resp.PrevPage)
}

func withoutToken(cursor string) string {
	if cursor == "" {
		return ""
	}

	u, err := url.Parse(cursor)
	if err != nil {
		return ""
	}

	q := u.Query()
	if !q.Has("access_token") {
		return cursor
	}

	q.Del("access_token")
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *Client) withToken(v url.Values) url.Values {
	if c.token != "" && v.Get("access_token") == "" {
		v.Set("access_token", c.token)
	}

	return v
}

// dropStaleRef сбрасывает кэш master ref, если CMS отвергла запрос
// (устаревший ref после публикации).
func (c *Client) dropStaleRef(err error) {
	var se *StatusError
	if !errors.As(err, &se) || (se.Code != http.StatusBadRequest && se.Code != http.StatusGone) {
		return
	}

	c.mu.Lock()
	c.master = ""
	c.mu.Unlock()
}

// get выполняет GET и декодирует JSON-ответ.
func (c *Client) get(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("new_request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// *url.Error несёт полный URL вместе с access_token.
		var ue *url.Error
		if errors.As(err, &ue) {
			ue.URL = redact.URL(ue.URL)
		}
		return fmt.Errorf("do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(io.Discard, resp.Body)
		return ErrNotFound
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	return nil
}
