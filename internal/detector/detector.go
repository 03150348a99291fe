package detector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"rebaltrader/internal/config"
	"rebaltrader/internal/models"
)

// RunLogger receives human-readable lines destined for the end-of-run
// notification message.
type RunLogger interface {
	Logf(format string, args ...any)
}

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Response classification markers, checked before any structured parse.
const (
	shortBodyThreshold = 1000
	markerSubscription = "Subscription is required"
	markerCaptcha      = "captcha.js"
	markerPaywallOK    = `"isPaywalled":false`
)

const dateLayout = "2006-01-02"

// Detector fetches rebalance data for one strategy. It is single-use: created
// fresh for each scheduled run, it carries the run's session-cookie cache and
// the cookie-verified flag, and is discarded when the run ends. It is not safe
// for concurrent use; each run owns its own instance.
type Detector struct {
	profile    config.Strategy
	dataDir    string
	cookieFile string
	targetDate string
	runDay     bool
	client     *http.Client

	cookie         string
	cookieModTime  time.Time
	cookieVerified bool
}

// New builds a detector for one run. today decides the target rebalance date.
func New(profile config.Strategy, dataDir, cookieFile string, today time.Time) *Detector {
	target := TargetDate(profile.Rule, today)
	return &Detector{
		profile:    profile,
		dataDir:    dataDir,
		cookieFile: cookieFile,
		targetDate: target.Format(dateLayout),
		runDay:     truncateToDay(today).Equal(target),
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

// TargetDate is the rebalance date being looked for, as "2006-01-02".
func (d *Detector) TargetDate() string { return d.targetDate }

// IsRunDay reports whether today is the target date itself.
func (d *Detector) IsRunDay() bool { return d.runDay }

// ForceRunDay overrides the run-day gate, used by operator-forced dry runs.
func (d *Detector) ForceRunDay() { d.runDay = true }

// CookieVerified reports whether the session cookie has been proven to work
// at least once this run: structured records were parsed, independent of any
// date filtering. An empty result with this still false may mean a silently
// broken cookie, not "genuinely no events".
func (d *Detector) CookieVerified() bool { return d.cookieVerified }

type articlesResult struct {
	events []models.RebalanceEvent
	err    error
}

// Detect performs one poll tick: ensure the cookie, fetch, archive, classify,
// parse, filter to the target date. Classified failures (ErrAuthExpired,
// ErrBlocked, ErrMalformedResponse) come back as errors the caller logs and
// retries; they never stop the polling loop.
func (d *Detector) Detect(ctx context.Context, rl RunLogger) ([]models.RebalanceEvent, error) {
	if err := d.ensureCookieLoaded(); err != nil {
		return nil, err
	}
	d.cookieVerified = false

	if d.profile.TransactionsURL == "" {
		return d.detectArticlesPrimary(ctx, rl)
	}

	// The articles endpoint publishes minutes earlier than the transaction
	// history on bad days. Start it now so it is ready if the primary comes
	// back empty.
	var fallback chan articlesResult
	if d.profile.ArticlesURL != "" {
		fallback = make(chan articlesResult, 1)
		cookie := d.cookie
		go func() {
			events, _, err := fetchArticleEvents(ctx, d.client, d.profile.ArticlesURL, cookie,
				d.dataDir, d.archivePrefix("articles"), d.targetDate)
			fallback <- articlesResult{events: events, err: err}
		}()
	}

	body, archivePath, err := d.fetch(ctx, d.profile.TransactionsURL, d.archivePrefix("transactions"))
	if err != nil {
		return nil, err
	}

	if len(body) < shortBodyThreshold && strings.Contains(string(body), markerSubscription) {
		return nil, fmt.Errorf("update cookie file, see %s: %w", archivePath, ErrAuthExpired)
	}
	if strings.Contains(string(body), markerCaptcha) {
		return nil, fmt.Errorf("update cookie file and solve the challenge in a browser, see %s: %w", archivePath, ErrBlocked)
	}

	var resp transactionsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing %s: %v: %w", archivePath, err, ErrMalformedResponse)
	}

	if len(resp.Data) > 0 {
		d.cookieVerified = true
	}

	instruments := make(map[string]instrumentRecord, len(resp.Included))
	for _, inst := range resp.Included {
		instruments[inst.ID] = inst
	}

	rl.Logf("Found %d transactions, %d instruments", len(resp.Data), len(instruments))

	events := d.filterTransactions(resp, instruments)

	if len(events) == 0 && fallback != nil {
		res := <-fallback
		if res.err != nil {
			log.Printf("Articles fallback for %s failed: %v", d.profile.Name, res.err)
			return events, nil
		}
		return res.events, nil
	}

	return events, nil
}

func (d *Detector) filterTransactions(resp transactionsResponse, instruments map[string]instrumentRecord) []models.RebalanceEvent {
	var events []models.RebalanceEvent
	for _, tr := range resp.Data {
		if tr.Attributes.ActionDate != d.targetDate {
			continue
		}
		// Routine rebalance housekeeping entries are not trade signals.
		if tr.Attributes.Rule == "rebalance" {
			continue
		}
		side, ok := sideFromAction(tr.Attributes.Action)
		if !ok {
			continue
		}
		inst, ok := instruments[tr.Relationships.Ticker.Data.ID]
		if !ok {
			continue
		}
		events = append(events, models.RebalanceEvent{
			TransactionID:  tr.ID,
			Side:           side,
			ActionDate:     tr.Attributes.ActionDate,
			Ticker:         inst.Attributes.Name,
			CompanyName:    inst.Attributes.CompanyName,
			StartingWeight: string(tr.Attributes.StartingWeight),
			NewWeight:      string(tr.Attributes.NewWeight),
			KnownPrice:     tr.Attributes.Price,
		})
	}
	return events
}

// detectArticlesPrimary serves strategies whose only data source is the
// articles feed. Unlike the fallback path, tags seen here count as cookie
// verification.
func (d *Detector) detectArticlesPrimary(ctx context.Context, rl RunLogger) ([]models.RebalanceEvent, error) {
	events, tagsSeen, err := fetchArticleEvents(ctx, d.client, d.profile.ArticlesURL, d.cookie,
		d.dataDir, d.archivePrefix("articles"), d.targetDate)
	if err != nil {
		return nil, err
	}
	if tagsSeen {
		d.cookieVerified = true
	}
	rl.Logf("Found %d article buy entries on %s", len(events), d.targetDate)
	return events, nil
}

// fetchArticleEvents downloads and parses the articles feed. Every primary
// ticker of an article published on the target date becomes a buy event; the
// feed carries no sell entries. Deliberately free of Detector state so the
// fallback goroutine cannot race the primary fetch.
func fetchArticleEvents(ctx context.Context, client *http.Client, url, cookie, dataDir, prefix, targetDate string) ([]models.RebalanceEvent, bool, error) {
	body, archivePath, err := fetchURL(ctx, client, url, cookie, dataDir, prefix)
	if err != nil {
		return nil, false, err
	}

	if strings.Contains(string(body), markerCaptcha) {
		return nil, false, fmt.Errorf("update cookie file and solve the challenge in a browser, see %s: %w", archivePath, ErrBlocked)
	}
	// Without an active subscription the articles still arrive, but paywalled
	// and with empty ticker relationships. Treat that as expired auth.
	if !strings.Contains(string(body), markerPaywallOK) {
		return nil, false, fmt.Errorf("update cookie file, see %s (sometimes resolves on the next query): %w", archivePath, ErrAuthExpired)
	}

	var resp articlesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, false, fmt.Errorf("parsing %s: %v: %w", archivePath, err, ErrMalformedResponse)
	}

	tags := make(map[string]tagAttributes)
	for _, inc := range resp.Included {
		if inc.Type != "tag" {
			continue
		}
		var ta tagAttributes
		if err := json.Unmarshal(inc.Attributes, &ta); err == nil {
			tags[inc.ID] = ta
		}
	}

	var events []models.RebalanceEvent
	for _, art := range resp.Data {
		if len(art.Attributes.PublishOn) < len(dateLayout) || art.Attributes.PublishOn[:len(dateLayout)] != targetDate {
			continue
		}
		if art.Relationships.PrimaryTickers == nil {
			continue
		}
		for _, ref := range art.Relationships.PrimaryTickers.Data {
			if ref.Type != "tag" {
				continue
			}
			tag, ok := tags[ref.ID]
			if !ok {
				continue
			}
			// Tickers like "CLS:CA" are non-US listings we cannot trade.
			if strings.Contains(tag.Name, ":") {
				continue
			}
			events = append(events, models.RebalanceEvent{
				TransactionID: art.ID,
				Side:          models.SideBuy,
				ActionDate:    targetDate,
				Ticker:        tag.Name,
				CompanyName:   tag.Company,
			})
		}
	}

	return events, len(tags) > 0, nil
}

func (d *Detector) fetch(ctx context.Context, url, prefix string) ([]byte, string, error) {
	return fetchURL(ctx, d.client, url, d.cookie, d.dataDir, prefix)
}

// fetchURL issues the cookie-authenticated GET and archives the raw body to a
// timestamped file before anyone looks at it. The archive is the audit trail:
// cookie and captcha failures are only debuggable from these files.
func fetchURL(ctx context.Context, client *http.Client, url, cookie, dataDir, prefix string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("building request for %s: %w", prefix, err)
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Cookie", cookie)

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetching %s: %w", prefix, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("reading %s body: %w", prefix, err)
	}
	log.Printf("Fetched %s: %d bytes in %s", prefix, len(body), time.Since(start).Round(time.Millisecond))

	archivePath, err := saveResponse(dataDir, prefix, body)
	if err != nil {
		// Losing one audit file is not worth losing the poll tick.
		log.Printf("Warning: could not archive %s response: %v", prefix, err)
		archivePath = "(archive failed)"
	}
	return body, archivePath, nil
}

// saveResponse persists a raw response body to the data directory.
func saveResponse(dataDir, prefix string, body []byte) (string, error) {
	path := filepath.Join(dataDir, fmt.Sprintf("%s_%s.json", prefix, time.Now().Format("20060102T150405")))
	if err := os.WriteFile(path, body, 0644); err != nil {
		return "", err
	}
	return path, nil
}

func (d *Detector) archivePrefix(kind string) string {
	return fmt.Sprintf("%s_%s", strings.ToLower(d.profile.Name), kind)
}

// ensureCookieLoaded keeps the Cookie header value current without paying for
// a disk read on every tick: once the cookie has been proven working the whole
// check is skipped, and otherwise the file content is only re-read when its
// modification time moved.
func (d *Detector) ensureCookieLoaded() error {
	if d.cookieVerified {
		return nil
	}

	info, err := os.Stat(d.cookieFile)
	if err != nil {
		return fmt.Errorf("stat cookie file: %w", err)
	}

	if d.cookie != "" && info.ModTime().Equal(d.cookieModTime) {
		return nil
	}

	content, err := os.ReadFile(d.cookieFile)
	if err != nil {
		return fmt.Errorf("read cookie file: %w", err)
	}
	d.cookie = strings.TrimSpace(string(content))
	d.cookieModTime = info.ModTime()
	log.Println("Cookies loaded/refreshed from file.")
	return nil
}

func sideFromAction(action string) (models.Side, bool) {
	switch action {
	case "buy":
		return models.SideBuy, true
	case "sell":
		return models.SideSell, true
	}
	return "", false
}
