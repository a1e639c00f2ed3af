// Package registry implements the registry-lookup capability on top of the
// UK Companies House public data API.
package registry

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
	"unicode"

	"github.com/hupe1980/diligence/capability"
	"github.com/hupe1980/diligence/core"
	"github.com/hupe1980/diligence/internal/util"
	"github.com/hupe1980/diligence/logging"
	"github.com/hupe1980/diligence/tool"
)

// DefaultBaseURL is the Companies House public data API.
const DefaultBaseURL = "https://api.company-information.service.gov.uk"

const defaultItemsPerPage = 20

// Options configures the registry client.
type Options struct {
	BaseURL string
	// APIKey is sent as the basic-auth user name with an empty password.
	APIKey  string
	Timeout time.Duration
	Logger  logging.Logger
}

// Client is a thin Companies House client whose failures are classified.
type Client struct {
	http   *capability.HTTPClient
	logger logging.Logger
}

// New constructs a Client.
func New(optFns ...func(o *Options)) *Client {
	opts := Options{BaseURL: DefaultBaseURL, Timeout: 30 * time.Second, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	hc := capability.NewHTTPClient(core.CapabilityRegistryLookup, opts.BaseURL, opts.Timeout)
	apiKey := opts.APIKey
	hc.Authorize = func(r *http.Request) {
		if apiKey != "" {
			r.SetBasicAuth(apiKey, "")
		}
	}
	return &Client{http: hc, logger: logging.ForComponent(opts.Logger, "registry")}
}

// NewPort builds the registry-lookup port.
func NewPort(optFns ...func(o *Options)) *tool.Set {
	c := New(optFns...)
	return tool.NewSet(core.CapabilityRegistryLookup, c.Actions(), func(o *tool.SetOptions) { o.Logger = c.logger })
}

// SearchArgs are the arguments of search_companies.
type SearchArgs struct {
	Query        string `json:"query" jsonschema_description:"Company name to search for"`
	ItemsPerPage int    `json:"items_per_page,omitempty" jsonschema_description:"Maximum number of matches (default 20)"`
}

// ProfileArgs are the arguments of get_company_profile.
type ProfileArgs struct {
	Company string `json:"company" jsonschema_description:"Company number, or company name to search for first"`
}

// CompanyArgs are the arguments of the per-company listing actions.
type CompanyArgs struct {
	CompanyNumber string `json:"company_number" jsonschema_description:"Registry company number, e.g. 01234567"`
	ItemsPerPage  int    `json:"items_per_page,omitempty" jsonschema_description:"Maximum number of items (default 20)"`
}

// Actions returns the typed actions exposed to the reasoner.
func (c *Client) Actions() []*tool.Action {
	listing := func(name, desc, suffix string) *tool.Action {
		return tool.NewActionFromStruct(name, desc, CompanyArgs{}, func(ctx context.Context, args map[string]any) (any, error) {
			number := util.StringArg(args, "company_number")
			return c.list(ctx, name, number, suffix, util.IntArg(args, "items_per_page", defaultItemsPerPage))
		})
	}

	return []*tool.Action{
		tool.NewActionFromStruct("search_companies", "Search the company registry by name", SearchArgs{},
			func(ctx context.Context, args map[string]any) (any, error) {
				return c.SearchCompanies(ctx, util.StringArg(args, "query"), util.IntArg(args, "items_per_page", defaultItemsPerPage))
			}),
		tool.NewActionFromStruct("get_company_profile", "Fetch the official registry profile (status, address, incorporation date)", ProfileArgs{},
			func(ctx context.Context, args map[string]any) (any, error) {
				return c.CompanyProfile(ctx, util.StringArg(args, "company"))
			}),
		listing("get_company_officers", "List current and former officers (directors, secretaries)", "/officers"),
		listing("get_filing_history", "List statutory filings including accounts", "/filing-history"),
		listing("get_persons_with_significant_control", "List persons with significant control (owners)", "/persons-with-significant-control"),
		listing("get_charges", "List charges (mortgages, secured debt) registered against the company", "/charges"),
		tool.NewActionFromStruct("get_insolvency", "Fetch insolvency cases, if any", CompanyArgs{},
			func(ctx context.Context, args map[string]any) (any, error) {
				return c.get(ctx, "get_insolvency", "/company/"+url.PathEscape(util.StringArg(args, "company_number"))+"/insolvency", nil)
			}),
	}
}

// SearchCompanies searches the registry by name.
func (c *Client) SearchCompanies(ctx context.Context, query string, itemsPerPage int) (map[string]any, error) {
	q := url.Values{"q": {query}, "items_per_page": {strconv.Itoa(pageSize(itemsPerPage))}}
	return c.get(ctx, "search_companies", "/search/companies", q)
}

// CompanyProfile fetches the profile of company, which may be a company
// number or a name. Names are resolved via search first.
func (c *Client) CompanyProfile(ctx context.Context, company string) (map[string]any, error) {
	number := company
	if !LooksLikeCompanyNumber(company) {
		resolved, err := c.resolve(ctx, company)
		if err != nil {
			return nil, err
		}
		number = resolved
	}
	return c.get(ctx, "get_company_profile", "/company/"+url.PathEscape(number), nil)
}

func (c *Client) resolve(ctx context.Context, name string) (string, error) {
	res, err := c.SearchCompanies(ctx, name, 1)
	if err != nil {
		return "", err
	}
	items, _ := res["items"].([]any)
	if len(items) > 0 {
		if first, ok := items[0].(map[string]any); ok {
			if number, ok := first["company_number"].(string); ok && number != "" {
				c.logger.Debug("registry.resolve", "name", name, "company_number", number)
				return number, nil
			}
		}
	}
	return "", core.NewCapabilityError(core.ErrorKindNotFound, core.CapabilityRegistryLookup, "get_company_profile",
		fmt.Errorf("no company matching %q", name))
}

func (c *Client) list(ctx context.Context, action, number, suffix string, itemsPerPage int) (map[string]any, error) {
	q := url.Values{"items_per_page": {strconv.Itoa(pageSize(itemsPerPage))}}
	return c.get(ctx, action, "/company/"+url.PathEscape(number)+suffix, q)
}

func pageSize(n int) int {
	if n <= 0 || n > 100 {
		return defaultItemsPerPage
	}
	return n
}

func (c *Client) get(ctx context.Context, action, path string, q url.Values) (map[string]any, error) {
	var out map[string]any
	if err := c.http.GetJSON(ctx, action, path, q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// LooksLikeCompanyNumber reports whether s is a plausible registry number:
// alphanumeric and at most eight characters.
func LooksLikeCompanyNumber(s string) bool {
	if s == "" || len(s) > 8 {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
