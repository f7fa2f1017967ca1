package provider

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/okian/tierlist/internal/adapters/fetch"
	"github.com/tidwall/gjson"
)

const (
	oauthNamespace = "wcl-oauth"
	oauthTTL       = 300 * time.Second
)

// accessToken performs the client-credentials grant. The token response is
// cached for five minutes like any other upstream document.
func accessToken(ctx context.Context, f Fetcher, baseURL, clientID, clientSecret string, policy fetch.Policy) (string, error) {
	policy.CacheTTL = oauthTTL
	basic := base64.StdEncoding.EncodeToString([]byte(clientID + ":" + clientSecret))
	body, err := f.FetchJSON(ctx, strings.TrimRight(baseURL, "/")+"/oauth/token", fetch.Request{
		Method: "POST",
		Headers: map[string]string{
			"Content-Type":  "application/x-www-form-urlencoded",
			"Authorization": "Basic " + basic,
		},
		Body:      []byte("grant_type=client_credentials"),
		Namespace: oauthNamespace,
		Policy:    &policy,
	})
	if err != nil {
		return "", fmt.Errorf("oauth token: %w", err)
	}
	token := gjson.GetBytes(body, "access_token").String()
	if token == "" {
		return "", fmt.Errorf("%w: token response has no access_token", fetch.ErrUpstream)
	}
	return token, nil
}
