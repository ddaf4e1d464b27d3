package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"RialLedger/internal/model"
)

// DefaultTGJUURL is the USD/IRR history page.
const DefaultTGJUURL = "https://www.tgju.org/profile/price_dollar_rl/history"

// ErrNoTable is returned when a page does not contain the history table.
var ErrNoTable = errors.New("history table not found")

// TGJUFeed reads the paginated history table of tgju.org. The feed owns an
// HTTP session and the documents it has navigated to; Close releases both.
type TGJUFeed struct {
	URL          string
	UserAgent    string
	Client       *http.Client
	InitialDelay time.Duration // extra wait after the first page of a session
	SettleDelay  time.Duration // wait after each navigation
	Logger       *logrus.Logger

	pending map[int]*goquery.Document
	loaded  bool
	closed  bool
}

// TGJUOptions configures a TGJUFeed.
type TGJUOptions struct {
	URL          string
	UserAgent    string
	Proxy        string
	Timeout      time.Duration
	InitialDelay time.Duration
	SettleDelay  time.Duration
	Logger       *logrus.Logger
}

// NewTGJUFeed opens a feed session.
func NewTGJUFeed(opts TGJUOptions) *TGJUFeed {
	if opts.URL == "" {
		opts.URL = DefaultTGJUURL
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return &TGJUFeed{
		URL:          opts.URL,
		UserAgent:    opts.UserAgent,
		Client:       newHTTPClient(opts.Proxy, opts.Timeout),
		InitialDelay: opts.InitialDelay,
		SettleDelay:  opts.SettleDelay,
		Logger:       opts.Logger,
		pending:      make(map[int]*goquery.Document),
	}
}

func (f *TGJUFeed) Name() string { return "tgju" }

func (f *TGJUFeed) pageURL(page int) (string, error) {
	u, err := url.Parse(f.URL)
	if err != nil {
		return "", fmt.Errorf("parse feed url: %w", err)
	}
	if page > 1 {
		q := u.Query()
		q.Set("page", strconv.Itoa(page))
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (f *TGJUFeed) load(ctx context.Context, page int) (*goquery.Document, error) {
	if f.closed {
		return nil, ErrClosed
	}
	u, err := f.pageURL(page)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tgju fetch page %d: %w", page, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tgju fetch page %d: status %d", page, resp.StatusCode)
	}
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("tgju parse page %d: %w", page, err)
	}
	wait := f.SettleDelay
	if !f.loaded {
		wait += f.InitialDelay
		f.loaded = true
	}
	if err := sleepCtx(ctx, wait); err != nil {
		return nil, err
	}
	return doc, nil
}

// AdvanceToNextPage loads page and keeps it for the following FetchPage.
func (f *TGJUFeed) AdvanceToNextPage(ctx context.Context, page int) bool {
	doc, err := f.load(ctx, page)
	if err != nil {
		f.Logger.WithField("page", page).WithError(err).Warn("could not navigate to page")
		return false
	}
	if doc.Find("#table-list").Length() == 0 {
		f.Logger.WithField("page", page).Warn("navigated page has no history table")
		return false
	}
	f.pending[page] = doc
	return true
}

// FetchPage extracts the rows of page. Rows with fewer than eight cells are
// dropped.
func (f *TGJUFeed) FetchPage(ctx context.Context, page int) ([]model.RawRow, bool, error) {
	doc, ok := f.pending[page]
	if ok {
		delete(f.pending, page)
	} else {
		var err error
		if doc, err = f.load(ctx, page); err != nil {
			return nil, false, err
		}
	}
	rows, err := ParseHistoryTable(doc)
	if err != nil {
		return nil, false, fmt.Errorf("page %d: %w", page, err)
	}
	return rows, hasNextPage(doc, page, len(rows)), nil
}

// Close releases the session. Later calls fail with ErrClosed.
func (f *TGJUFeed) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	f.pending = nil
	f.Client.CloseIdleConnections()
	return nil
}

// ParseHistoryTable reads the rows of the #table-list body.
func ParseHistoryTable(doc *goquery.Document) ([]model.RawRow, error) {
	table := doc.Find("#table-list")
	if table.Length() == 0 {
		return nil, ErrNoTable
	}
	var rows []model.RawRow
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var cells []string
		tr.Find("td").Each(func(_ int, td *goquery.Selection) {
			cells = append(cells, strings.TrimSpace(td.Text()))
		})
		if r, ok := model.RawRowFromCells(cells); ok {
			rows = append(rows, r)
		}
	})
	return rows, nil
}

// hasNextPage inspects the pagination controls. Without any pagination
// markup a non-empty page is assumed to have a successor.
func hasNextPage(doc *goquery.Document, page, rows int) bool {
	next := doc.Find("a.paginate_button.next")
	if next.Length() > 0 {
		return !next.HasClass("disabled")
	}
	buttons := doc.Find("a.paginate_button[data-dt-idx]")
	if buttons.Length() > 0 {
		more := false
		buttons.Each(func(_ int, s *goquery.Selection) {
			idx, err := strconv.Atoi(s.AttrOr("data-dt-idx", ""))
			if err == nil && idx > page {
				more = true
			}
		})
		return more
	}
	return rows > 0
}
