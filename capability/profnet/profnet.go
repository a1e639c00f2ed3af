// Package profnet implements the professional-network-lookup capability over
// a configurable HTTP profile API.
//
// The API is expected to answer
//
//	GET {base}/profiles?name=<name>&context=<context>   -> {"profiles": [...]}
//	GET {base}/companies/people?company=<name>          -> {"people": [...]}
//
// with an API key in the X-Api-Key header. Empty result lists are NotFound.
package profnet

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hupe1980/diligence/capability"
	"github.com/hupe1980/diligence/core"
	"github.com/hupe1980/diligence/internal/util"
	"github.com/hupe1980/diligence/logging"
	"github.com/hupe1980/diligence/tool"
)

// Options configures the client.
type Options struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Logger  logging.Logger
}

// Profile is a professional profile record.
type Profile struct {
	Name       string   `json:"name"`
	Headline   string   `json:"headline,omitempty"`
	Company    string   `json:"company,omitempty"`
	Title      string   `json:"title,omitempty"`
	Location   string   `json:"location,omitempty"`
	ProfileURL string   `json:"profile_url,omitempty"`
	Experience []string `json:"experience,omitempty"`
}

// Client looks up professional profiles.
type Client struct {
	http   *capability.HTTPClient
	logger logging.Logger
}

// New constructs a Client.
func New(optFns ...func(o *Options)) *Client {
	opts := Options{Timeout: 30 * time.Second, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	hc := capability.NewHTTPClient(core.CapabilityProfessionalNetwork, opts.BaseURL, opts.Timeout)
	apiKey := opts.APIKey
	hc.Authorize = func(r *http.Request) {
		if apiKey != "" {
			r.Header.Set("X-Api-Key", apiKey)
		}
	}
	return &Client{http: hc, logger: logging.ForComponent(opts.Logger, "profnet")}
}

// NewPort builds the professional-network-lookup port.
func NewPort(optFns ...func(o *Options)) *tool.Set {
	c := New(optFns...)
	return tool.NewSet(core.CapabilityProfessionalNetwork, c.Actions(), func(o *tool.SetOptions) { o.Logger = c.logger })
}

// LookupArgs are the arguments of lookup_profile.
type LookupArgs struct {
	Name    string `json:"name" jsonschema_description:"Full name of the person"`
	Context string `json:"context,omitempty" jsonschema_description:"Disambiguating context such as the company name"`
}

// PeopleArgs are the arguments of list_company_people.
type PeopleArgs struct {
	Company string `json:"company" jsonschema_description:"Company name"`
}

// Actions returns the typed actions exposed to the reasoner.
func (c *Client) Actions() []*tool.Action {
	return []*tool.Action{
		tool.NewActionFromStruct("lookup_profile", "Look up a person's professional profile", LookupArgs{},
			func(ctx context.Context, args map[string]any) (any, error) {
				return c.LookupProfile(ctx, util.StringArg(args, "name"), util.StringArg(args, "context"))
			}),
		tool.NewActionFromStruct("list_company_people", "List leadership and key staff listed for a company", PeopleArgs{},
			func(ctx context.Context, args map[string]any) (any, error) {
				return c.CompanyPeople(ctx, util.StringArg(args, "company"))
			}),
	}
}

// LookupProfile returns the profiles matching name, narrowed by hint.
func (c *Client) LookupProfile(ctx context.Context, name, hint string) ([]Profile, error) {
	q := url.Values{"name": {name}}
	if hint != "" {
		q.Set("context", hint)
	}
	var out struct {
		Profiles []Profile `json:"profiles"`
	}
	if err := c.http.GetJSON(ctx, "lookup_profile", "/profiles", q, &out); err != nil {
		return nil, err
	}
	if len(out.Profiles) == 0 {
		return nil, core.NewCapabilityError(core.ErrorKindNotFound, core.CapabilityProfessionalNetwork, "lookup_profile",
			fmt.Errorf("no profile for %q", name))
	}
	return out.Profiles, nil
}

// CompanyPeople returns the people associated with company.
func (c *Client) CompanyPeople(ctx context.Context, company string) ([]Profile, error) {
	var out struct {
		People []Profile `json:"people"`
	}
	if err := c.http.GetJSON(ctx, "list_company_people", "/companies/people", url.Values{"company": {company}}, &out); err != nil {
		return nil, err
	}
	if len(out.People) == 0 {
		return nil, core.NewCapabilityError(core.ErrorKindNotFound, core.CapabilityProfessionalNetwork, "list_company_people",
			fmt.Errorf("no people listed for %q", company))
	}
	c.logger.Debug("profnet.people", "company", company, "count", len(out.People))
	return out.People, nil
}
