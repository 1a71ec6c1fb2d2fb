package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	xerrors "monetize-service/pkg/xerrors"

	"github.com/redis/go-redis/v9"
)

const (
	directoryCacheTTL = 10 * time.Minute
	userCachePrefix   = "directory:user:"
	reelCachePrefix   = "directory:reel:"
)

// UserDirectory resolves account existence against the user service
type UserDirectory interface {
	UserExists(ctx context.Context, userID string) (bool, error)
}

// ContentDirectory resolves a reel to its creator against the content service
type ContentDirectory interface {
	CreatorOf(ctx context.Context, reelID string) (string, error)
}

// Directory is an HTTP client over the platform's user and content services
// with a Redis read-through cache. Lookup failures are returned as errors so
// a directory outage rejects events instead of silently paying unknown users.
type Directory struct {
	userBaseURL    string
	contentBaseURL string
	client         *http.Client
	redis          *redis.Client
}

func NewDirectory(userBaseURL, contentBaseURL string, redisClient *redis.Client) *Directory {
	return &Directory{
		userBaseURL:    userBaseURL,
		contentBaseURL: contentBaseURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		redis: redisClient,
	}
}

// UserExists checks the user service for an account, caching positive results.
// Negative results are never cached: a user created moments later should not
// keep losing earnings to a stale miss.
func (d *Directory) UserExists(ctx context.Context, userID string) (bool, error) {
	cacheKey := userCachePrefix + userID
	if cached, err := d.redis.Get(ctx, cacheKey).Result(); err == nil && cached == "1" {
		return true, nil
	}

	url := fmt.Sprintf("%s/api/users/%s", d.userBaseURL, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("failed to build user lookup request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("user lookup failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// best effort: a failed cache write just means a lookup next time
		d.redis.Set(ctx, cacheKey, "1", directoryCacheTTL)
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("user lookup returned status %d", resp.StatusCode)
	}
}

// CreatorOf resolves a reel's creator via the content service
func (d *Directory) CreatorOf(ctx context.Context, reelID string) (string, error) {
	cacheKey := reelCachePrefix + reelID
	if cached, err := d.redis.Get(ctx, cacheKey).Result(); err == nil && cached != "" {
		return cached, nil
	}

	url := fmt.Sprintf("%s/api/reels/%s", d.contentBaseURL, reelID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build reel lookup request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("reel lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", xerrors.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("reel lookup returned status %d", resp.StatusCode)
	}

	var payload struct {
		CreatorID string `json:"creator_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to decode reel lookup response: %w", err)
	}
	if payload.CreatorID == "" {
		return "", xerrors.ErrNotFound
	}

	d.redis.Set(ctx, cacheKey, payload.CreatorID, directoryCacheTTL)

	return payload.CreatorID, nil
}
