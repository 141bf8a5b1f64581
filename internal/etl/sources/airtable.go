package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"airexport/internal/etl"
)

// ── Airtable Source ─────────────────────────────────────────
// Fetches every record of a table from the Airtable REST API, following
// the "offset" continuation cursor until the upstream is exhausted.

// DefaultAPIURL is the public Airtable API root.
const DefaultAPIURL = "https://api.airtable.com/v0"

type airtableSource struct {
	client   *http.Client
	apiURL   string
	baseID   string
	token    string
	pageSize int
	logger   *slog.Logger
}

func init() { etl.RegisterSource("airtable", newAirtableSource) }

// newAirtableSource reads: baseId, token (required), apiUrl, timeout
// (time.Duration), pageSize (int), logger (*slog.Logger).
func newAirtableSource(cfg etl.SourceConfig) (etl.Source, error) {
	s := &airtableSource{
		apiURL: strings.TrimRight(cfg.String("apiUrl"), "/"),
		baseID: cfg.String("baseId"),
		token:  cfg.String("token"),
	}
	if s.baseID == "" {
		return nil, fmt.Errorf("baseId is required")
	}
	if s.token == "" {
		return nil, fmt.Errorf("token is required")
	}
	if s.apiURL == "" {
		s.apiURL = DefaultAPIURL
	}

	timeout := 30 * time.Second
	if d, ok := cfg["timeout"].(time.Duration); ok && d > 0 {
		timeout = d
	}
	s.client = &http.Client{Timeout: timeout}

	if n, ok := cfg["pageSize"].(int); ok && n > 0 {
		s.pageSize = n
	}
	if l, ok := cfg["logger"].(*slog.Logger); ok && l != nil {
		s.logger = l
	} else {
		s.logger = slog.New(slog.DiscardHandler)
	}
	return s, nil
}

// page is one response of the list-records endpoint.
type page struct {
	Records []etl.Row `json:"records"`
	Offset  string    `json:"offset,omitempty"`
}

func (s *airtableSource) Fetch(ctx context.Context, table, view string) ([]etl.Row, error) {
	var rows []etl.Row
	offset := ""
	for pages := 1; ; pages++ {
		p, err := s.fetchPage(ctx, table, view, offset)
		if err != nil {
			return nil, err
		}
		rows = append(rows, p.Records...)
		s.logger.Debug("page fetched", "table", table, "page", pages, "records", len(p.Records))

		if p.Offset == "" {
			return rows, nil
		}
		if p.Offset == offset {
			return nil, &etl.FetchError{Table: table, Cause: fmt.Errorf("offset %q repeated", offset)}
		}
		offset = p.Offset
	}
}

func (s *airtableSource) fetchPage(ctx context.Context, table, view, offset string) (*page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.tableURL(table, view, offset), nil)
	if err != nil {
		return nil, &etl.FetchError{Table: table, Cause: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Authorization", bearer(s.token))
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &etl.FetchError{Table: table, Cause: fmt.Errorf("http request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &etl.FetchError{Table: table, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var p page
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&p); err != nil {
		return nil, &etl.FetchError{Table: table, Cause: fmt.Errorf("parse json: %w", err)}
	}
	return &p, nil
}

// tableURL builds the list-records URL for table.
func (s *airtableSource) tableURL(table, view, offset string) string {
	q := url.Values{}
	if view != "" {
		q.Set("view", view)
	}
	if s.pageSize > 0 {
		q.Set("pageSize", strconv.Itoa(s.pageSize))
	}
	if offset != "" {
		q.Set("offset", offset)
	}
	u := s.apiURL + "/" + url.PathEscape(s.baseID) + "/" + url.PathEscape(table)
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

// bearer accepts either a raw token or a full "Bearer ..." header value.
func bearer(token string) string {
	if strings.HasPrefix(token, "Bearer ") {
		return token
	}
	return "Bearer " + token
}
