package directory

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-resty/resty/v2"
	"github.com/gregjones/httpcache"
	"github.com/memberdesk/memberdesk/internal/telemetry"
	"github.com/rs/zerolog/log"
)

// Config holds configuration for the HTTP directory client.
type Config struct {
	// BaseURL is the directory service API root, e.g. https://api.workos.com
	BaseURL string

	// APIKey is sent as a bearer token on every request.
	APIKey string

	// Timeout is the per-request timeout. Default: 30s
	Timeout time.Duration

	// MaxRetries bounds retry attempts on 5xx/transport errors. Default: 3
	MaxRetries uint
}

// ApplyDefaults applies default values to unset configuration fields.
func (c *Config) ApplyDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
}

// HTTPClient implements Client against the directory service's REST API.
// Read endpoints honour Cache-Control via an in-memory caching transport;
// transient failures are retried with exponential backoff.
type HTTPClient struct {
	rc         *resty.Client
	maxRetries uint
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a directory client with the given configuration.
func NewHTTPClient(cfg Config) *HTTPClient {
	cfg.ApplyDefaults()

	httpClient := &http.Client{
		Transport: httpcache.NewMemoryCacheTransport(),
		Timeout:   cfg.Timeout,
	}

	rc := resty.NewWithClient(httpClient).
		SetBaseURL(cfg.BaseURL).
		SetAuthToken(cfg.APIKey).
		SetHeader("Accept", "application/json")

	return &HTTPClient{
		rc:         rc,
		maxRetries: cfg.MaxRetries,
	}
}

// GetOrganization fetches an organization by id.
func (c *HTTPClient) GetOrganization(ctx context.Context, orgID string) (*Organization, error) {
	return execute(ctx, c, func() (*resty.Response, error) {
		return c.rc.R().
			SetContext(ctx).
			SetResult(&Organization{}).
			SetPathParam("orgID", orgID).
			Get("/organizations/{orgID}")
	}, func(resp *resty.Response) *Organization {
		return resp.Result().(*Organization)
	})
}

// AddDomain attaches a domain to an organization.
func (c *HTTPClient) AddDomain(ctx context.Context, orgID, domain string) (*OrgDomain, error) {
	return execute(ctx, c, func() (*resty.Response, error) {
		return c.rc.R().
			SetContext(ctx).
			SetResult(&OrgDomain{}).
			SetPathParam("orgID", orgID).
			SetBody(map[string]string{"domain": domain}).
			Post("/organizations/{orgID}/domains")
	}, func(resp *resty.Response) *OrgDomain {
		return resp.Result().(*OrgDomain)
	})
}

// RemoveDomain detaches a domain from an organization.
func (c *HTTPClient) RemoveDomain(ctx context.Context, orgID, domain string) error {
	_, err := execute(ctx, c, func() (*resty.Response, error) {
		return c.rc.R().
			SetContext(ctx).
			SetPathParams(map[string]string{"orgID": orgID, "domain": domain}).
			Delete("/organizations/{orgID}/domains/{domain}")
	}, func(resp *resty.Response) struct{} {
		return struct{}{}
	})
	return err
}

// CreateMembership adds a user to an organization with the given role.
func (c *HTTPClient) CreateMembership(ctx context.Context, orgID, userID, role string) (*Membership, error) {
	return execute(ctx, c, func() (*resty.Response, error) {
		return c.rc.R().
			SetContext(ctx).
			SetResult(&Membership{}).
			SetBody(map[string]string{
				"organization_id": orgID,
				"user_id":         userID,
				"role":            role,
			}).
			Post("/organization_memberships")
	}, func(resp *resty.Response) *Membership {
		return resp.Result().(*Membership)
	})
}

// DeleteMembership removes a membership by its directory id.
func (c *HTTPClient) DeleteMembership(ctx context.Context, membershipID string) error {
	_, err := execute(ctx, c, func() (*resty.Response, error) {
		return c.rc.R().
			SetContext(ctx).
			SetPathParam("id", membershipID).
			Delete("/organization_memberships/{id}")
	}, func(resp *resty.Response) struct{} {
		return struct{}{}
	})
	return err
}

// listMembershipsPage is the directory's cursor-paginated list response.
type listMembershipsPage struct {
	Data         []*Membership `json:"data"`
	ListMetadata struct {
		After string `json:"after"`
	} `json:"list_metadata"`
}

// ListMemberships drains the directory's cursor pagination and returns every
// membership of the organization. The loop always terminates: an empty after
// cursor ends it.
func (c *HTTPClient) ListMemberships(ctx context.Context, orgID string) ([]*Membership, error) {
	var all []*Membership
	after := ""

	for {
		page, err := execute(ctx, c, func() (*resty.Response, error) {
			req := c.rc.R().
				SetContext(ctx).
				SetResult(&listMembershipsPage{}).
				SetQueryParam("organization_id", orgID)
			if after != "" {
				req.SetQueryParam("after", after)
			}
			return req.Get("/organization_memberships")
		}, func(resp *resty.Response) *listMembershipsPage {
			return resp.Result().(*listMembershipsPage)
		})
		if err != nil {
			return nil, err
		}

		all = append(all, page.Data...)

		if page.ListMetadata.After == "" {
			return all, nil
		}
		after = page.ListMetadata.After
	}
}

// execute runs one request with retry on transport errors and 5xx responses,
// mapping terminal HTTP statuses onto the package sentinels.
func execute[T any](ctx context.Context, c *HTTPClient, do func() (*resty.Response, error), extract func(*resty.Response) T) (T, error) {
	var zero T

	operation := func() (*resty.Response, error) {
		resp, err := do()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}

		switch {
		case resp.StatusCode() >= 500:
			return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode())
		case resp.StatusCode() == http.StatusNotFound:
			return nil, backoff.Permanent(ErrNotFound)
		case resp.StatusCode() >= 400:
			return nil, backoff.Permanent(fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode()))
		}

		return resp, nil
	}

	telemetry.GetMetrics().DirectoryRequestsTotal.Add(ctx, 1)

	resp, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(c.maxRetries),
	)
	if err != nil {
		telemetry.GetMetrics().DirectoryErrorsTotal.Add(ctx, 1)
		log.Debug().Err(err).Msg("directory request failed")
		return zero, err
	}

	return extract(resp), nil
}
