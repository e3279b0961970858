package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"golang.org/x/sync/singleflight"
)

const (
	maxKeySetBytes = 1 << 20

	// minKidRefreshInterval bounds how often an unknown kid may force a
	// refetch of a still fresh key set.
	minKidRefreshInterval = 30 * time.Second
)

var errUnknownKid = errors.New("no signing key with kid")

// keySet caches the provider's published signing keys. A lookup after ttl
// triggers a refetch, as does an unknown kid once the cached set is older
// than minKidRefreshInterval. Concurrent refetches collapse into one request.
type keySet struct {
	url    string
	client *http.Client
	ttl    time.Duration
	now    func() time.Time

	group singleflight.Group

	mu      sync.RWMutex
	keys    map[string]any
	fetched time.Time
}

func newKeySet(url string, client *http.Client, ttl time.Duration) *keySet {
	return &keySet{url: url, client: client, ttl: ttl, now: time.Now}
}

// key returns the public key published under kid.
func (k *keySet) key(ctx context.Context, kid string) (any, error) {
	k.mu.RLock()
	key, ok := k.keys[kid]
	age := k.now().Sub(k.fetched)
	fresh := !k.fetched.IsZero() && age < k.ttl
	k.mu.RUnlock()
	if ok && fresh {
		return key, nil
	}
	if fresh && age < minKidRefreshInterval {
		return nil, fmt.Errorf("%w %q", errUnknownKid, kid)
	}

	if err := k.refresh(ctx); err != nil {
		return nil, err
	}

	k.mu.RLock()
	defer k.mu.RUnlock()
	if key, ok := k.keys[kid]; ok {
		return key, nil
	}
	return nil, fmt.Errorf("%w %q", errUnknownKid, kid)
}

func (k *keySet) refresh(ctx context.Context) error {
	_, err, _ := k.group.Do("jwks", func() (any, error) {
		keys, err := k.fetch(ctx)
		if err != nil {
			return nil, err
		}
		k.mu.Lock()
		k.keys = keys
		k.fetched = k.now()
		k.mu.Unlock()
		return nil, nil
	})
	return err
}

func (k *keySet) fetch(ctx context.Context) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build key set request: %w", err)
	}
	resp, err := k.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch key set: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch key set: unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxKeySetBytes))
	if err != nil {
		return nil, fmt.Errorf("read key set: %w", err)
	}

	var set jose.JSONWebKeySet
	if err := json.Unmarshal(body, &set); err != nil {
		return nil, fmt.Errorf("parse key set: %w", err)
	}

	keys := make(map[string]any, len(set.Keys))
	for _, jwk := range set.Keys {
		if jwk.Use != "" && jwk.Use != "sig" {
			continue
		}
		if !jwk.IsPublic() {
			continue
		}
		keys[jwk.KeyID] = jwk.Key
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("key set at %s has no signing keys", k.url)
	}
	return keys, nil
}
