package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/helixir/theme-discovery-service/internal/domain"
)

// Crossref client defaults.
const (
	// DefaultCrossrefBaseURL is the public Crossref API.
	DefaultCrossrefBaseURL = "https://api.crossref.org"
	// defaultTimeout bounds one registry request.
	defaultTimeout = 30 * time.Second
	// defaultRateLimit is requests per second against a registry.
	defaultRateLimit = 5.0
	// userAgent identifies the service to the registries' polite pools.
	userAgent = "theme-discovery-service/1.0"
)

// jatsTagPattern strips JATS markup from Crossref abstracts.
var jatsTagPattern = regexp.MustCompile(`<[^>]+>`)

// CrossrefClient resolves metadata from the Crossref works API.
// It only supports DOI lookups; title-only queries return not-found so the
// chain can fall through to OpenAlex.
type CrossrefClient struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// Compile-time interface verification.
var _ Resolver = (*CrossrefClient)(nil)

// NewCrossrefClient creates a Crossref resolver. Zero-value arguments fall
// back to the package defaults.
func NewCrossrefClient(baseURL string, timeout time.Duration, rateLimit float64) *CrossrefClient {
	if baseURL == "" {
		baseURL = DefaultCrossrefBaseURL
	}
	if timeout == 0 {
		timeout = defaultTimeout
	}
	if rateLimit == 0 {
		rateLimit = defaultRateLimit
	}

	return &CrossrefClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rateLimit), 1),
	}
}

// crossrefResponse is the subset of the works response the resolver reads.
type crossrefResponse struct {
	Message struct {
		DOI            string     `json:"DOI"`
		Title          []string   `json:"title"`
		ContainerTitle []string   `json:"container-title"`
		Abstract       string     `json:"abstract"`
		Author         []struct {
			Given  string `json:"given"`
			Family string `json:"family"`
		} `json:"author"`
		PublishedPrint struct {
			DateParts [][]int `json:"date-parts"`
		} `json:"published-print"`
		PublishedOnline struct {
			DateParts [][]int `json:"date-parts"`
		} `json:"published-online"`
	} `json:"message"`
}

// Resolve implements Resolver.
func (c *CrossrefClient) Resolve(ctx context.Context, doi, _ string) (*Record, error) {
	if doi == "" {
		return nil, domain.NewNotFoundError("crossref record", "no DOI")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("crossref rate limit wait: %w", err)
	}

	endpoint := fmt.Sprintf("%s/works/%s", c.baseURL, url.PathEscape(doi))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build crossref request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("crossref request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.NewNotFoundError("crossref record", doi)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewExternalAPIError("crossref", resp.StatusCode, "unexpected status", nil)
	}

	var parsed crossrefResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode crossref response: %w", err)
	}

	record := &Record{
		DOI:      parsed.Message.DOI,
		Abstract: strings.TrimSpace(jatsTagPattern.ReplaceAllString(parsed.Message.Abstract, " ")),
		Source:   "crossref",
	}
	if len(parsed.Message.Title) > 0 {
		record.Title = parsed.Message.Title[0]
	}
	if len(parsed.Message.ContainerTitle) > 0 {
		record.Venue = parsed.Message.ContainerTitle[0]
	}
	for _, author := range parsed.Message.Author {
		name := strings.TrimSpace(author.Given + " " + author.Family)
		if name != "" {
			record.Authors = append(record.Authors, name)
		}
	}
	record.Year = firstYear(parsed.Message.PublishedPrint.DateParts, parsed.Message.PublishedOnline.DateParts)
	record.Abstract = strings.Join(strings.Fields(record.Abstract), " ")

	return record, nil
}

// firstYear returns the first year found in the given date-parts lists.
func firstYear(lists ...[][]int) int {
	for _, parts := range lists {
		if len(parts) > 0 && len(parts[0]) > 0 {
			return parts[0][0]
		}
	}
	return 0
}
