// Package fedex validates shipping addresses against the FedEx address API.
package fedex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	defaultBaseURL        = "https://apis-sandbox.fedex.com"
	tokenPath             = "/oauth/token"
	resolvePath           = "/address/v1/addresses/resolve"
	errorBodyReadLimit    = 1024
	defaultRequestTimeout = 10 * time.Second
)

var errCredentialsRequired = errors.New("fedex client id and secret are required")

// Address is the subset of a postal address FedEx resolves.
type Address struct {
	Street  string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
	Country string `json:"country"`
}

// Resolution is the outcome of validating one address.
type Resolution struct {
	Valid          bool    `json:"valid"`
	Address        Address `json:"resolvedAddress"`
	Classification string  `json:"classification,omitempty"`
}

// Client calls FedEx with an OAuth2 client-credentials token.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// Option configures optional client behavior.
type Option func(*clientOptions)

type clientOptions struct {
	baseURL    string
	httpClient *http.Client
}

// WithBaseURL overrides the API host.
func WithBaseURL(baseURL string) Option {
	return func(o *clientOptions) {
		if trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/"); trimmed != "" {
			o.baseURL = trimmed
		}
	}
}

// WithHTTPClient sets the transport used for both token and API calls.
func WithHTTPClient(client *http.Client) Option {
	return func(o *clientOptions) {
		if client != nil {
			o.httpClient = client
		}
	}
}

// NewClient builds a client; tokens are fetched lazily and cached until expiry.
func NewClient(clientID, clientSecret string, opts ...Option) (*Client, error) {
	clientID = strings.TrimSpace(clientID)
	clientSecret = strings.TrimSpace(clientSecret)
	if clientID == "" || clientSecret == "" {
		return nil, errCredentialsRequired
	}

	o := clientOptions{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	cc := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     o.baseURL + tokenPath,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	base := context.WithValue(context.Background(), oauth2.HTTPClient, o.httpClient)
	authed := cc.Client(base)
	authed.Timeout = o.httpClient.Timeout

	return &Client{
		httpClient: authed,
		baseURL:    o.baseURL,
	}, nil
}

type resolveRequest struct {
	AddressesToValidate []addressEnvelope `json:"addressesToValidate"`
}

type addressEnvelope struct {
	Address fedexAddress `json:"address"`
}

type fedexAddress struct {
	StreetLines         []string `json:"streetLines"`
	City                string   `json:"city"`
	StateOrProvinceCode string   `json:"stateOrProvinceCode"`
	PostalCode          string   `json:"postalCode"`
	CountryCode         string   `json:"countryCode"`
}

type resolveResponse struct {
	Output struct {
		ResolvedAddresses []struct {
			StreetLinesToken    []string          `json:"streetLinesToken"`
			City                string            `json:"city"`
			StateOrProvinceCode string            `json:"stateOrProvinceCode"`
			PostalCode          string            `json:"postalCode"`
			CountryCode         string            `json:"countryCode"`
			Classification      string            `json:"classification"`
			Attributes          map[string]string `json:"attributes"`
		} `json:"resolvedAddresses"`
	} `json:"output"`
}

// ResolveAddress asks FedEx to standardize addr.
func (c *Client) ResolveAddress(ctx context.Context, addr Address) (*Resolution, error) {
	country := strings.ToUpper(strings.TrimSpace(addr.Country))
	if country == "" {
		country = "US"
	}

	body, err := json.Marshal(resolveRequest{AddressesToValidate: []addressEnvelope{{
		Address: fedexAddress{
			StreetLines:         []string{addr.Street},
			City:                addr.City,
			StateOrProvinceCode: addr.State,
			PostalCode:          addr.Zip,
			CountryCode:         country,
		},
	}}})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+resolvePath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-locale", "en_US")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fedex resolve: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
		return nil, fmt.Errorf("fedex resolve: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var decoded resolveResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("fedex resolve decode: %w", err)
	}

	if len(decoded.Output.ResolvedAddresses) == 0 {
		return &Resolution{Valid: false, Address: addr}, nil
	}

	r := decoded.Output.ResolvedAddresses[0]
	resolved := Address{
		Street:  strings.Join(r.StreetLinesToken, " "),
		City:    r.City,
		State:   r.StateOrProvinceCode,
		Zip:     r.PostalCode,
		Country: r.CountryCode,
	}
	if resolved.Street == "" {
		resolved.Street = addr.Street
	}

	return &Resolution{
		Valid:          strings.EqualFold(r.Attributes["Resolved"], "true"),
		Address:        resolved,
		Classification: r.Classification,
	}, nil
}
