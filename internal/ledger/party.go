package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/duespay/duespay/internal/cache"
	"github.com/duespay/duespay/internal/config"
	"github.com/duespay/duespay/internal/domain/party"
	ierr "github.com/duespay/duespay/internal/errors"
	"github.com/duespay/duespay/internal/httpclient"
	"github.com/duespay/duespay/internal/logger"
)

const partyCacheTTL = 10 * time.Minute

// PartyClient reads member data from the external member store. Lookups are
// cached; the engine never writes member data.
type PartyClient struct {
	http    httpclient.Client
	baseURL string
	apiKey  string
	cache   cache.Cache
	logger  *logger.Logger
}

// NewPartyClient creates a read-only member store client
func NewPartyClient(cfg *config.Configuration, c cache.Cache, log *logger.Logger) *PartyClient {
	timeout := cfg.Ledger.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &PartyClient{
		http:    httpclient.NewClientWithTimeout(timeout),
		baseURL: strings.TrimRight(cfg.Ledger.BaseURL, "/"),
		apiKey:  cfg.Ledger.APIKey,
		cache:   c,
		logger:  log,
	}
}

// GetParty returns a member by id
func (c *PartyClient) GetParty(ctx context.Context, partyID string) (*party.Party, error) {
	key := cache.Key(cache.PrefixParty, partyID)
	if v, ok := c.cache.Get(ctx, key); ok {
		if p, ok := v.(*party.Party); ok {
			return p, nil
		}
	}

	resp, err := c.http.Send(ctx, &httpclient.Request{
		Method: http.MethodGet,
		URL:    fmt.Sprintf("%s/v1/parties/%s", c.baseURL, url.PathEscape(partyID)),
		Headers: map[string]string{
			"Authorization": "Bearer " + c.apiKey,
			"Accept":        "application/json",
		},
	})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Member lookup failed").
			WithReportableDetails(map[string]any{"party_id": partyID}).
			Mark(ierr.ErrLedger)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, ierr.NewError("member not found").
			WithHint("Member was not found in the member store").
			WithReportableDetails(map[string]any{"party_id": partyID}).
			Mark(ierr.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, ierr.NewErrorf("member lookup returned status %d", resp.StatusCode).
			WithHint("The member store rejected the request").
			Mark(ierr.ErrLedger)
	}

	var p party.Party
	if err := json.Unmarshal(resp.Body, &p); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Member store returned an unreadable member").
			Mark(ierr.ErrLedger)
	}

	c.cache.Set(ctx, key, &p, partyCacheTTL)
	return &p, nil
}

// GetPartyMandateID returns the member's current mandate id, or empty if
// none is on file
func (c *PartyClient) GetPartyMandateID(ctx context.Context, partyID string) (string, error) {
	resp, err := c.http.Send(ctx, &httpclient.Request{
		Method: http.MethodGet,
		URL:    fmt.Sprintf("%s/v1/parties/%s/mandate", c.baseURL, url.PathEscape(partyID)),
		Headers: map[string]string{
			"Authorization": "Bearer " + c.apiKey,
			"Accept":        "application/json",
		},
	})
	if err != nil {
		return "", ierr.WithError(err).
			WithHint("Member mandate lookup failed").
			WithReportableDetails(map[string]any{"party_id": partyID}).
			Mark(ierr.ErrLedger)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		var out struct {
			MandateID string `json:"mandate_id"`
		}
		if err := json.Unmarshal(resp.Body, &out); err != nil {
			return "", ierr.WithError(err).
				WithHint("Member store returned an unreadable mandate response").
				Mark(ierr.ErrLedger)
		}
		return out.MandateID, nil
	case http.StatusNotFound:
		return "", nil
	default:
		return "", ierr.NewErrorf("member mandate lookup returned status %d", resp.StatusCode).
			WithHint("The member store rejected the request").
			Mark(ierr.ErrLedger)
	}
}
