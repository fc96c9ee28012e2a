package oauth

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// APIGateway signs API requests with a bearer token and classifies their
// responses.
type APIGateway struct {
	transport Transport
}

// NewAPIGateway creates a gateway. A nil transport selects NewHTTPTransport(nil).
func NewAPIGateway(transport Transport) *APIGateway {
	if transport == nil {
		transport = NewHTTPTransport(nil)
	}
	return &APIGateway{transport: transport}
}

// Call sends method to endpoint with the given access token. For GET the
// params are appended to the URL as a query string; for any other method
// they are form-encoded into the body.
//
// A 200 response must be JSON. Any other status is returned as a failed
// APIResult, not an error.
func (g *APIGateway) Call(ctx context.Context, accessToken, method string, params url.Values, endpoint string) (*APIResult, error) {
	header := http.Header{}
	header.Set("Authorization", bearerTokenType+" "+accessToken)
	header.Set("Accept", contentTypeJSON)

	target := endpoint
	var body []byte
	if len(params) > 0 {
		if method == http.MethodGet {
			target = appendQuery(endpoint, params)
		} else {
			body = []byte(params.Encode())
			header.Set("Content-Type", contentTypeForm)
		}
	}

	resp, err := dispatch(ctx, g.transport, &Request{
		Method: method,
		URL:    target,
		Header: header,
		Body:   body,
	})
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusOK {
		value, ok := decodeJSON(resp.Body)
		if !ok {
			return nil, newError(KindProviderIncompatibility, nil, "JSON not returned by %s endpoint", endpoint)
		}
		return &APIResult{StatusCode: resp.StatusCode, Body: value, Raw: resp.Body}, nil
	}

	return &APIResult{
		StatusCode: resp.StatusCode,
		Body:       bodyValue(resp.Body),
		Raw:        resp.Body,
	}, nil
}

func appendQuery(endpoint string, params url.Values) string {
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	return endpoint + sep + params.Encode()
}
