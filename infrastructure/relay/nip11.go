package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/meridiansearch/meridian/domain/nostr"
)

const (
	policyCacheSize = 256
	policyCacheTTL  = time.Hour
)

// nip11Document is the relay information document wire shape.
type nip11Document struct {
	Name          string `json:"name"`
	SupportedNIPs []int  `json:"supported_nips"`
	Limitation    struct {
		MaxLimit         int `json:"max_limit"`
		MaxMessageLength int `json:"max_message_length"`
		MaxSubscriptions int `json:"max_subscriptions"`
	} `json:"limitation"`
}

// PolicyFetcher retrieves NIP-11 relay information documents over HTTP,
// memoizing results for an hour.
type PolicyFetcher struct {
	client *http.Client
	cache  *expirable.LRU[string, nostr.RelayPolicy]
}

// NewPolicyFetcher creates a PolicyFetcher. A nil client uses a default
// with a 5 second timeout.
func NewPolicyFetcher(client *http.Client) *PolicyFetcher {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &PolicyFetcher{
		client: client,
		cache:  expirable.NewLRU[string, nostr.RelayPolicy](policyCacheSize, nil, policyCacheTTL),
	}
}

// Fetch returns the relay's NIP-11 policy, from cache when fresh. The
// relayURL is the websocket URL; the information document is served over
// the corresponding HTTP scheme.
func (f *PolicyFetcher) Fetch(ctx context.Context, relayURL string) (nostr.RelayPolicy, error) {
	if cached, ok := f.cache.Get(relayURL); ok {
		return cached, nil
	}

	httpURL := policyURL(relayURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, httpURL, nil)
	if err != nil {
		return nostr.RelayPolicy{}, fmt.Errorf("build nip-11 request: %w", err)
	}
	req.Header.Set("Accept", "application/nostr+json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nostr.RelayPolicy{}, fmt.Errorf("fetch nip-11 from %s: %w", httpURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nostr.RelayPolicy{}, fmt.Errorf("fetch nip-11 from %s: status %d", httpURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return nostr.RelayPolicy{}, fmt.Errorf("read nip-11 body: %w", err)
	}

	var doc nip11Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nostr.RelayPolicy{}, fmt.Errorf("decode nip-11 document: %w", err)
	}

	policy := nostr.NewRelayPolicy(
		doc.Name,
		doc.Limitation.MaxLimit,
		doc.Limitation.MaxMessageLength,
		doc.Limitation.MaxSubscriptions,
		doc.SupportedNIPs,
	)
	f.cache.Add(relayURL, policy)
	return policy, nil
}

// policyURL converts a websocket relay URL to its HTTP equivalent.
func policyURL(relayURL string) string {
	switch {
	case strings.HasPrefix(relayURL, "wss://"):
		return "https://" + strings.TrimPrefix(relayURL, "wss://")
	case strings.HasPrefix(relayURL, "ws://"):
		return "http://" + strings.TrimPrefix(relayURL, "ws://")
	}
	return relayURL
}
