// Package registry talks to the fedresurs bankruptcy registry.
//
// It lists bankrupt companies and persons page by page and enriches each
// list item with the per-entity detail resources: the company or person
// card, manager history, publications, biddings and sole-entrepreneur
// registrations. Every enrichment step is best effort. A failed step is
// reported as a model.StepResult and never discards fields gathered by
// earlier steps.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/nao1215/bankrotscan/internal/log"
	"github.com/nao1215/bankrotscan/internal/model"
	"github.com/nao1215/bankrotscan/internal/node"
)

// Enrichment step names, as reported in model.StepResult.
const (
	StepDetail        = "detail"
	StepManager       = "manager"
	StepPublications  = "publications"
	StepBiddings      = "biddings"
	StepEntrepreneurs = "entrepreneurs"
)

// biddingsPageSize is the page size used when counting biddings.
const biddingsPageSize = 50

// entrepreneursPageSize bounds the single page of registrations read.
const entrepreneursPageSize = 50

// Endpoints holds the base URLs of the registry.
type Endpoints struct {
	// ListBase serves the paged bankrupt lists (cmpbankrupts, prsnbankrupts).
	ListBase string `yaml:"listBase,omitempty"`
	// ListReferer is sent with list requests.
	ListReferer string `yaml:"listReferer,omitempty"`
	// DetailBase serves companies, persons and biddings.
	DetailBase string `yaml:"detailBase,omitempty"`
	// SiteBase is the public site; record source URLs point there.
	SiteBase string `yaml:"siteBase,omitempty"`
}

// DefaultEndpoints returns the production registry endpoints.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		ListBase:    "https://bankrot.fedresurs.ru/backend",
		ListReferer: "https://bankrot.fedresurs.ru/bankrupts",
		DetailBase:  "https://fedresurs.ru/backend",
		SiteBase:    "https://fedresurs.ru",
	}
}

// withDefaults fills empty fields from DefaultEndpoints and trims
// trailing slashes.
func (e Endpoints) withDefaults() Endpoints {
	d := DefaultEndpoints()
	pick := func(v, def string) string {
		v = strings.TrimRight(strings.TrimSpace(v), "/")
		if v == "" {
			return def
		}
		return v
	}
	return Endpoints{
		ListBase:    pick(e.ListBase, d.ListBase),
		ListReferer: pick(e.ListReferer, d.ListReferer),
		DetailBase:  pick(e.DetailBase, d.DetailBase),
		SiteBase:    pick(e.SiteBase, d.SiteBase),
	}
}

// JSONFetcher fetches a JSON document. Any error means "absent".
type JSONFetcher interface {
	JSON(ctx context.Context, url, referer string) (node.Node, error)
}

// Client lists and enriches registry records.
type Client struct {
	fetcher   JSONFetcher
	endpoints Endpoints
	logger    *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithEndpoints overrides the registry base URLs.
func WithEndpoints(e Endpoints) Option {
	return func(c *Client) {
		c.endpoints = e.withDefaults()
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a registry client on top of fetcher.
func NewClient(fetcher JSONFetcher, opts ...Option) *Client {
	c := &Client{
		fetcher:   fetcher,
		endpoints: DefaultEndpoints(),
		logger:    log.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoints returns the endpoints in use.
func (c *Client) Endpoints() Endpoints {
	return c.endpoints
}

// Page fetches one page of list items for kind. It returns the pageData
// array of the response; an absent response or a missing or non-array
// pageData yields no items. The error is informational: it is set only
// when the fetch itself failed.
func (c *Client) Page(ctx context.Context, kind model.Kind, offset, limit int) ([]node.Node, error) {
	resource := "cmpbankrupts"
	if kind == model.KindIndividual {
		resource = "prsnbankrupts"
	}
	q := url.Values{}
	q.Set("limit", fmt.Sprint(limit))
	q.Set("offset", fmt.Sprint(offset))
	u := c.endpoints.ListBase + "/" + resource + "?" + q.Encode()

	doc, err := c.fetcher.JSON(ctx, u, c.endpoints.ListReferer)
	if err != nil {
		return nil, err
	}
	items, _ := doc.Array("pageData")
	return items, nil
}

// companyURL is the public card of a company and the legal dedupe key.
func (c *Client) companyURL(guid string) string {
	return c.endpoints.SiteBase + "/company/" + url.PathEscape(guid)
}

// personURL is the public card of a person and the individual dedupe key.
func (c *Client) personURL(guid string) string {
	return c.endpoints.SiteBase + "/person/" + url.PathEscape(guid)
}

// detailURL joins path segments under DetailBase and appends query.
func (c *Client) detailURL(query url.Values, segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	u := c.endpoints.DetailBase + "/" + strings.Join(escaped, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// fetchStep fetches url for one enrichment step. It returns the document
// and a StepResult that is Failed on error and Empty for a document
// without data; callers replace the result with Filled once they take
// values from the document.
func (c *Client) fetchStep(ctx context.Context, step, guid, u, referer string) (node.Node, model.StepResult) {
	doc, err := c.fetcher.JSON(ctx, u, referer)
	if err != nil {
		c.logger.Debug("enrichment step failed", "step", step, "guid", guid, "error", err)
		return node.Node{}, model.Failed(step, err)
	}
	return doc, model.Empty(step)
}
