package interaction

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/html"
	"golang.org/x/time/rate"

	"github.com/supplemate/api/internal/platform/apperror"
)

// Source fetches graded interactions for a drug from an external
// reference. checking, when non-nil, filters results to the named
// normalized drugs.
type Source interface {
	FetchInteractions(ctx context.Context, drug string, checking map[string]bool) ([]SourceInteraction, error)
}

// BNFSource scrapes the BNF interactions pages. Each instance owns its
// HTTP client and rate limiter; construct one per resolver.
type BNFSource struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	logger  zerolog.Logger
}

type BNFSourceConfig struct {
	BaseURL string
	Timeout time.Duration
	RPS     float64
}

func NewBNFSource(cfg BNFSourceConfig, logger zerolog.Logger) *BNFSource {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	rps := cfg.RPS
	if rps <= 0 {
		rps = 2
	}
	return &BNFSource{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/") + "/",
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		logger:  logger,
	}
}

// FetchInteractions downloads the interactions page for drug and extracts
// the graded entries. Drug names in the returned pairs are normalized and
// ordered.
func (s *BNFSource) FetchInteractions(ctx context.Context, drug string, checking map[string]bool) ([]SourceInteraction, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, apperror.ExternalSource(err, "rate limit wait")
	}

	url := s.baseURL + strings.ReplaceAll(strings.TrimSpace(drug), " ", "-")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperror.ExternalSource(err, "build request for %s", url)
	}
	req.Header.Set("User-Agent", "supplemate-api/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, apperror.ExternalSource(err, "fetch %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperror.ExternalSource(
			fmt.Errorf("status %d", resp.StatusCode), "fetch %s", url)
	}

	entries, err := parseInteractionsPage(resp.Body, drug)
	if err != nil {
		return nil, apperror.ExternalSource(err, "parse %s", url)
	}

	if checking != nil {
		filtered := entries[:0]
		for _, e := range entries {
			if checking[e.FstDrug] || checking[e.SndDrug] {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}

	s.logger.Debug().Str("drug", drug).Int("count", len(entries)).Msg("fetched interactions")
	return entries, nil
}

// parseInteractionsPage walks the page for the interactions list: an <ol>
// whose class contains "interactionsList", each <li> holding an <h3> with
// the other drug's name, a <p> description, and a <dd> severity.
func parseInteractionsPage(r io.Reader, drug string) ([]SourceInteraction, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	list := findList(doc)
	if list == nil {
		return nil, nil
	}

	self := Normalize(drug)
	var entries []SourceInteraction
	for li := list.FirstChild; li != nil; li = li.NextSibling {
		if li.Type != html.ElementNode || li.Data != "li" {
			continue
		}

		h3 := findElement(li, "h3")
		if h3 == nil {
			continue
		}
		other := strings.ToLower(nodeText(h3))
		if other == "" {
			continue
		}

		ul := findElement(li, "ul")
		if ul == nil {
			continue
		}
		description := strings.TrimSpace(nodeText(findElement(ul, "p")))
		if description == "" {
			continue
		}
		rawSeverity := strings.TrimSpace(nodeText(findElement(ul, "dd")))
		if rawSeverity == "" {
			continue
		}

		pair := []string{self, Normalize(other)}
		sort.Strings(pair)
		entries = append(entries, SourceInteraction{
			FstDrug:     pair[0],
			SndDrug:     pair[1],
			Severity:    ParseSourceSeverity(rawSeverity),
			Description: description,
		})
	}
	return entries, nil
}

// findList returns the first <ol> whose class attribute mentions the
// interactions list.
func findList(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "ol" {
		for _, attr := range n.Attr {
			if attr.Key == "class" && strings.Contains(attr.Val, "interactionsList") {
				return n
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findList(c); found != nil {
			return found
		}
	}
	return nil
}

// findElement returns the first descendant element with the given tag.
func findElement(n *html.Node, tag string) *html.Node {
	if n == nil {
		return nil
	}
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

// nodeText concatenates all text under n, trimmed.
func nodeText(n *html.Node) string {
	if n == nil {
		return ""
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}
