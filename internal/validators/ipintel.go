package validators

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// HTTPIntelValidator queries an IP intelligence API for ASN and network
// classification. The response contract is a small JSON object:
//
//	{"asn": 13335, "org": "Cloudflare", "classification": "hosting"}
type HTTPIntelValidator struct {
	client  *http.Client
	baseURL string
	token   string
}

// NewHTTPIntelValidator creates an intel validator against baseURL,
// authenticated with a bearer token.
func NewHTTPIntelValidator(baseURL, token string) *HTTPIntelValidator {
	return &HTTPIntelValidator{
		client:  &http.Client{Timeout: 5 * time.Second},
		baseURL: baseURL,
		token:   token,
	}
}

type intelResponse struct {
	ASN            int64  `json:"asn"`
	Org            string `json:"org"`
	Classification string `json:"classification"`
}

// Validate looks up one IP. Errors mean the lookup degraded; the caller
// falls back to an unknown network class.
func (v *HTTPIntelValidator) Validate(ctx context.Context, ip string) (IntelResult, error) {
	u := v.baseURL + "?ip=" + url.QueryEscape(ip)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return IntelResult{}, err
	}
	if v.token != "" {
		req.Header.Set("Authorization", "Bearer "+v.token)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return IntelResult{}, fmt.Errorf("ip intel: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return IntelResult{}, fmt.Errorf("ip intel: status %d", resp.StatusCode)
	}

	var body intelResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return IntelResult{}, fmt.Errorf("ip intel: decode: %w", err)
	}

	return IntelResult{ASN: body.ASN, Org: body.Org, Class: body.Classification}, nil
}
