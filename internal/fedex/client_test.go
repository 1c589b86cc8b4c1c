package fedex

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFedexServer(t *testing.T, tokenCalls *atomic.Int32, resolved string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case tokenPath:
			tokenCalls.Add(1)
			assert.NoError(t, r.ParseForm())
			assert.Equal(t, "client_credentials", r.Form.Get("grant_type"))
			assert.Equal(t, "id", r.Form.Get("client_id"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token":"tok","token_type":"bearer","expires_in":3600}`))
		case resolvePath:
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			var body resolveRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			if assert.Len(t, body.AddressesToValidate, 1) {
				assert.Equal(t, "US", body.AddressesToValidate[0].Address.CountryCode)
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(resolved))
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestResolveAddress(t *testing.T) {
	var tokenCalls atomic.Int32
	srv := newFedexServer(t, &tokenCalls, `{"output":{"resolvedAddresses":[{
		"streetLinesToken":["1 MAIN ST"],"city":"AUSTIN","stateOrProvinceCode":"TX",
		"postalCode":"78701-1234","countryCode":"US","classification":"RESIDENTIAL",
		"attributes":{"Resolved":"true"}}]}}`)
	defer srv.Close()

	c, err := NewClient("id", "secret", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	addr := Address{Street: "1 main st", City: "austin", State: "TX", Zip: "78701"}
	res, err := c.ResolveAddress(context.Background(), addr)
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, "1 MAIN ST", res.Address.Street)
	assert.Equal(t, "78701-1234", res.Address.Zip)
	assert.Equal(t, "RESIDENTIAL", res.Classification)

	_, err = c.ResolveAddress(context.Background(), addr)
	require.NoError(t, err)
	assert.Equal(t, int32(1), tokenCalls.Load(), "token is cached between calls")
}

func TestResolveAddress_Unresolved(t *testing.T) {
	var tokenCalls atomic.Int32
	srv := newFedexServer(t, &tokenCalls, `{"output":{"resolvedAddresses":[]}}`)
	defer srv.Close()

	c, err := NewClient("id", "secret", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	addr := Address{Street: "nowhere", City: "x", State: "ZZ", Zip: "00000"}
	res, err := c.ResolveAddress(context.Background(), addr)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, addr, res.Address)
}

func TestNewClient_RequiresCredentials(t *testing.T) {
	_, err := NewClient("", "secret")
	assert.ErrorIs(t, err, errCredentialsRequired)
}
