package fanbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fanboxed/internal/logging"
	"fanboxed/internal/services"
	"fanboxed/internal/transport"
)

const sessionCookie = "FANBOXSESSID"

// Options configures a Client.
type Options struct {
	// BaseURL is the API root, e.g. https://api.fanbox.cc.
	BaseURL string
	// Origin is sent as the Origin header and bounds which asset hosts
	// receive the session cookie.
	Origin    string
	SessionID string
	// IncludeFiles adds file attachments to the asset list alongside images.
	IncludeFiles bool
	// Location is the zone publish times are decomposed in. Nil means local.
	Location *time.Location
	Logger   *slog.Logger
}

// Client resolves posts through the content API and fetches their assets.
type Client struct {
	getter       transport.Getter
	baseURL      string
	origin       string
	sessionID    string
	cookieDomain string
	includeFiles bool
	location     *time.Location
	logger       *slog.Logger
}

type apiResponse struct {
	Error string   `json:"error"`
	Body  *rawPost `json:"body"`
}

type rawPost struct {
	ID                string          `json:"id"`
	Title             string          `json:"title"`
	CoverImageURL     *string         `json:"coverImageUrl"`
	PublishedDatetime string          `json:"publishedDatetime"`
	IsRestricted      bool            `json:"isRestricted"`
	User              rawUser         `json:"user"`
	Type              string          `json:"type"`
	Body              json.RawMessage `json:"body"`
}

type rawUser struct {
	Name string `json:"name"`
}

// NewClient builds a Client over the provided transport.
func NewClient(getter transport.Getter, opts Options) *Client {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	c := &Client{
		getter:       getter,
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		origin:       strings.TrimRight(opts.Origin, "/"),
		sessionID:    strings.TrimSpace(opts.SessionID),
		includeFiles: opts.IncludeFiles,
		location:     loc,
		logger:       logging.NewComponentLogger(opts.Logger, "fanbox"),
	}
	if u, err := url.Parse(c.origin); err == nil {
		c.cookieDomain = parentDomain(u.Hostname())
	}
	return c
}

// RequestInfo fetches and normalizes a post. Failures are a
// *services.TransportError when the API is unreachable, a *services.APIError
// when the response is unusable, or a *services.RestrictedError when the
// viewer cannot see the body.
func (c *Client) RequestInfo(ctx context.Context, id PostID) (*PostDescriptor, error) {
	endpoint := fmt.Sprintf("%s/post.info?postId=%s", c.baseURL, url.QueryEscape(string(id)))

	headers := http.Header{}
	headers.Set("Accept", "application/json")
	headers.Set("Origin", c.origin)
	if c.sessionID != "" {
		headers.Set("Cookie", sessionCookie+"="+c.sessionID)
	}

	data, err := c.getter.Get(ctx, transport.Request{
		URL:            endpoint,
		Headers:        headers,
		FailureMessage: "failed to call an API",
	})
	if err != nil {
		return nil, apiErrorFromStatus(err)
	}

	var resp apiResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &services.APIError{Message: "failed to call an API", Err: err}
	}
	if resp.Error != "" {
		return nil, &services.APIError{Message: "failed to call an API: " + resp.Error}
	}
	raw := resp.Body
	if raw == nil {
		return nil, &services.APIError{Message: "failed to call an API"}
	}
	if raw.IsRestricted {
		return nil, &services.RestrictedError{PostID: string(id)}
	}

	body, err := decodeBody(raw.Type, raw.Body)
	if err != nil {
		return nil, &services.APIError{Message: "unexpected post shape", Err: err}
	}
	if body == nil {
		return nil, &services.RestrictedError{PostID: string(id)}
	}

	published, err := time.Parse(time.RFC3339, raw.PublishedDatetime)
	if err != nil {
		return nil, &services.APIError{Message: "invalid publish time", Err: err}
	}

	norm, err := normalizeBody(body, c.includeFiles)
	if err != nil {
		return nil, &services.APIError{Message: "unexpected post shape", Err: err}
	}

	cover := ""
	if raw.CoverImageURL != nil {
		cover = strings.TrimSpace(*raw.CoverImageURL)
	}

	descriptor := newDescriptor(id, raw.User.Name, raw.Title, published.In(c.location), cover, norm.description, norm.assets)
	logging.WithContext(ctx, c.logger).Debug("post resolved",
		logging.String("type", raw.Type),
		logging.String("title", descriptor.Title),
		logging.Int("assets", len(descriptor.Assets)),
		logging.Bool("cover", descriptor.HasCover()),
	)
	return descriptor, nil
}

// FetchAsset downloads one asset. The session cookie is attached only for
// hosts under the origin's parent domain.
func (c *Client) FetchAsset(ctx context.Context, assetURL string) ([]byte, error) {
	headers := http.Header{}
	if c.origin != "" {
		headers.Set("Referer", c.origin+"/")
	}
	if c.sessionID != "" && c.sharesCookieDomain(assetURL) {
		headers.Set("Cookie", sessionCookie+"="+c.sessionID)
	}
	return c.getter.Get(ctx, transport.Request{
		URL:            assetURL,
		Headers:        headers,
		FailureMessage: fmt.Sprintf("failed to download '%s'", assetURL),
	})
}

// apiErrorFromStatus turns a non-2xx API reply carrying an error field into
// an *services.APIError. Anything else is returned unchanged.
func apiErrorFromStatus(err error) error {
	var te *services.TransportError
	if !errors.As(err, &te) || len(te.Body) == 0 {
		return err
	}
	var resp apiResponse
	if json.Unmarshal(te.Body, &resp) != nil || resp.Error == "" {
		return err
	}
	return &services.APIError{Message: "failed to call an API: " + resp.Error}
}

func (c *Client) sharesCookieDomain(assetURL string) bool {
	if c.cookieDomain == "" {
		return false
	}
	u, err := url.Parse(assetURL)
	if err != nil {
		return false
	}
	host := u.Hostname()
	return host == c.cookieDomain || strings.HasSuffix(host, "."+c.cookieDomain)
}

// parentDomain drops the first label of a host with three or more labels:
// www.fanbox.cc becomes fanbox.cc.
func parentDomain(host string) string {
	if net.ParseIP(host) != nil {
		return host
	}
	parts := strings.Split(host, ".")
	if len(parts) <= 2 {
		return host
	}
	return strings.Join(parts[1:], ".")
}
