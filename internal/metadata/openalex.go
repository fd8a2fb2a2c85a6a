package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/helixir/theme-discovery-service/internal/domain"
)

// DefaultOpenAlexBaseURL is the public OpenAlex API.
const DefaultOpenAlexBaseURL = "https://api.openalex.org"

// doiURLPrefix is the URL form OpenAlex uses for DOIs.
const doiURLPrefix = "https://doi.org/"

// OpenAlexClient resolves metadata from the OpenAlex works API. It supports
// both DOI lookups and title search, making it the fallback behind Crossref.
type OpenAlexClient struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// Compile-time interface verification.
var _ Resolver = (*OpenAlexClient)(nil)

// NewOpenAlexClient creates an OpenAlex resolver. Zero-value arguments fall
// back to the package defaults.
func NewOpenAlexClient(baseURL string, timeout time.Duration, rateLimit float64) *OpenAlexClient {
	if baseURL == "" {
		baseURL = DefaultOpenAlexBaseURL
	}
	if timeout == 0 {
		timeout = defaultTimeout
	}
	if rateLimit == 0 {
		rateLimit = defaultRateLimit
	}

	return &OpenAlexClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rateLimit), 1),
	}
}

// openAlexWork is the subset of a work response the resolver reads.
type openAlexWork struct {
	DOI         string `json:"doi"`
	Title       string `json:"title"`
	Authorships []struct {
		Author struct {
			DisplayName string `json:"display_name"`
		} `json:"author"`
	} `json:"authorships"`
	PrimaryLocation struct {
		Source struct {
			DisplayName string `json:"display_name"`
		} `json:"source"`
	} `json:"primary_location"`
	PublicationYear       int              `json:"publication_year"`
	AbstractInvertedIndex map[string][]int `json:"abstract_inverted_index"`
}

// openAlexSearchResponse wraps title search results.
type openAlexSearchResponse struct {
	Results []openAlexWork `json:"results"`
}

// Resolve implements Resolver. DOI lookups hit /works/https://doi.org/{doi};
// title-only lookups search and take the best-ranked result.
func (c *OpenAlexClient) Resolve(ctx context.Context, doi, title string) (*Record, error) {
	if doi == "" && title == "" {
		return nil, domain.NewNotFoundError("openalex record", "no identifiers")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("openalex rate limit wait: %w", err)
	}

	if doi != "" {
		return c.resolveByDOI(ctx, doi)
	}
	return c.resolveByTitle(ctx, title)
}

func (c *OpenAlexClient) resolveByDOI(ctx context.Context, doi string) (*Record, error) {
	endpoint := fmt.Sprintf("%s/works/%s", c.baseURL, url.PathEscape(doiURLPrefix+doi))

	var work openAlexWork
	if err := c.get(ctx, endpoint, &work); err != nil {
		return nil, err
	}
	return workToRecord(work), nil
}

func (c *OpenAlexClient) resolveByTitle(ctx context.Context, title string) (*Record, error) {
	endpoint := fmt.Sprintf("%s/works?search=%s&per-page=1", c.baseURL, url.QueryEscape(title))

	var search openAlexSearchResponse
	if err := c.get(ctx, endpoint, &search); err != nil {
		return nil, err
	}
	if len(search.Results) == 0 {
		return nil, domain.NewNotFoundError("openalex record", title)
	}
	return workToRecord(search.Results[0]), nil
}

func (c *OpenAlexClient) get(ctx context.Context, endpoint string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build openalex request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("openalex request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.NewNotFoundError("openalex record", endpoint)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.NewExternalAPIError("openalex", resp.StatusCode, "unexpected status", nil)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode openalex response: %w", err)
	}
	return nil
}

// workToRecord converts an OpenAlex work to a Record.
func workToRecord(work openAlexWork) *Record {
	record := &Record{
		DOI:      strings.TrimPrefix(work.DOI, doiURLPrefix),
		Title:    work.Title,
		Venue:    work.PrimaryLocation.Source.DisplayName,
		Year:     work.PublicationYear,
		Abstract: reconstructAbstract(work.AbstractInvertedIndex),
		Source:   "openalex",
	}
	for _, a := range work.Authorships {
		if a.Author.DisplayName != "" {
			record.Authors = append(record.Authors, a.Author.DisplayName)
		}
	}
	return record
}

// reconstructAbstract rebuilds the abstract text from OpenAlex's inverted
// index (word -> positions).
func reconstructAbstract(index map[string][]int) string {
	if len(index) == 0 {
		return ""
	}

	type positioned struct {
		pos  int
		word string
	}
	var words []positioned
	for word, positions := range index {
		for _, pos := range positions {
			words = append(words, positioned{pos: pos, word: word})
		}
	}
	sort.Slice(words, func(i, j int) bool { return words[i].pos < words[j].pos })

	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = w.word
	}
	return strings.Join(parts, " ")
}
