// Package userdata implements the cached HTTP lookups for subject profiles,
// assessment reports and guidance material.
package userdata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/leauyn/openavatarchat/domain/repositories"
)

// Config holds the lookup service endpoints.
type Config struct {
	ProfileURL          string
	AssessmentURL       string
	AssessmentDetailURL string
	GuidanceByCodeURL   string
	GuidanceByDimension string
	KnowledgeBaseURL    string
	Timeout             time.Duration
	CacheTTL            time.Duration
}

// DefaultConfig returns the default lookup endpoints.
func DefaultConfig() Config {
	return Config{
		ProfileURL:    "https://www.zhgk-mind.com/api/dwsurvey/anon/response/userInfo.do",
		AssessmentURL: "https://www.zhgk-mind.com/api/dwsurvey/anon/response/getUserResultInfo.do",
		Timeout:       10 * time.Second,
		CacheTTL:      10 * time.Minute,
	}
}

// ConfigFromEnv builds a config from environment variables, starting from
// the defaults. Unset endpoints stay as-is; an endpoint can be disabled by
// setting its variable to "-".
func ConfigFromEnv() Config {
	config := DefaultConfig()
	override := func(target *string, key string) {
		v := os.Getenv(key)
		switch v {
		case "":
		case "-":
			*target = ""
		default:
			*target = v
		}
	}
	override(&config.ProfileURL, "USER_PROFILE_URL")
	override(&config.AssessmentURL, "USER_ASSESSMENT_URL")
	override(&config.AssessmentDetailURL, "USER_ASSESSMENT_DETAIL_URL")
	override(&config.GuidanceByCodeURL, "GUIDANCE_BY_CODE_URL")
	override(&config.GuidanceByDimension, "GUIDANCE_BY_DIMENSION_URL")
	override(&config.KnowledgeBaseURL, "KNOWLEDGE_BASE_URL")
	return config
}

// apiEnvelope is the common response wrapper of the lookup services.
type apiEnvelope struct {
	ResultCode int             `json:"resultCode"`
	ResultMsg  string          `json:"resultMsg"`
	Data       json.RawMessage `json:"data"`
}

// Client implements repositories.UserDataService over HTTP with a TTL-bound
// cache in front of every endpoint. Lookup failures degrade to an empty
// string; they are never surfaced to the turn loop.
type Client struct {
	config Config
	http   *http.Client
	cache  repositories.Cache
	logger *zap.Logger
}

// NewClient creates a lookup client writing through the given cache.
func NewClient(config Config, cache repositories.Cache, logger *zap.Logger) *Client {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		config: config,
		http:   &http.Client{Timeout: timeout},
		cache:  cache,
		logger: logger,
	}
}

// cached runs fetch under a cache key derived from the endpoint and subject.
// Empty results are not cached so a transient failure can recover.
func (c *Client) cached(ctx context.Context, endpoint, id string, fetch func() string) string {
	key := fmt.Sprintf("%s|%s", endpoint, id)
	if value, err := c.cache.Get(ctx, key); err == nil {
		return value
	}

	value := fetch()
	if value != "" {
		if err := c.cache.Set(ctx, key, value, c.config.CacheTTL); err != nil {
			c.logger.Warn("lookup cache store failed", zap.String("key", key), zap.Error(err))
		}
	}
	return value
}

// Profile returns the rendered profile text for a subject.
func (c *Client) Profile(ctx context.Context, subjectID string) string {
	return c.cached(ctx, c.config.ProfileURL, subjectID, func() string {
		raw, err := c.getJSON(ctx, c.config.ProfileURL, subjectID)
		if err != nil {
			c.logger.Error("profile lookup failed", zap.String("subject", subjectID), zap.Error(err))
			return ""
		}
		var data profileData
		if err := json.Unmarshal(raw, &data); err != nil {
			c.logger.Error("profile decode failed", zap.Error(err))
			return ""
		}
		return renderProfile(data)
	})
}

// AssessmentSummary returns the categorized assessment overview for a subject.
func (c *Client) AssessmentSummary(ctx context.Context, subjectID string) string {
	return c.cached(ctx, c.config.AssessmentURL, subjectID, func() string {
		raw, err := c.postJSON(ctx, c.config.AssessmentURL, subjectID)
		if err != nil {
			c.logger.Error("assessment lookup failed", zap.String("subject", subjectID), zap.Error(err))
			return ""
		}
		var items []assessmentItem
		if err := json.Unmarshal(raw, &items); err != nil {
			c.logger.Error("assessment decode failed", zap.Error(err))
			return ""
		}
		return renderAssessment(items)
	})
}

// AssessmentDetail returns the full report bodies for a subject, one block
// per assessment item.
func (c *Client) AssessmentDetail(ctx context.Context, subjectID string) string {
	endpoint := c.config.AssessmentDetailURL
	if endpoint == "" {
		endpoint = c.config.AssessmentURL
	}
	return c.cached(ctx, endpoint+"#detail", subjectID, func() string {
		raw, err := c.postJSON(ctx, endpoint, subjectID)
		if err != nil {
			c.logger.Error("assessment detail lookup failed", zap.String("subject", subjectID), zap.Error(err))
			return ""
		}
		var items []assessmentItem
		if err := json.Unmarshal(raw, &items); err != nil {
			c.logger.Error("assessment detail decode failed", zap.Error(err))
			return ""
		}
		var buf bytes.Buffer
		for _, item := range items {
			if item.Name == "" || item.Value == "" {
				continue
			}
			fmt.Fprintf(&buf, "【%s】\n%s\n", item.Name, item.Value)
		}
		return buf.String()
	})
}

// GuidanceByCode returns guidance material for an assessment code.
func (c *Client) GuidanceByCode(ctx context.Context, code string) string {
	if c.config.GuidanceByCodeURL == "" {
		return ""
	}
	return c.cached(ctx, c.config.GuidanceByCodeURL, code, func() string {
		return c.fetchText(ctx, c.config.GuidanceByCodeURL, "code", code)
	})
}

// GuidanceByDimension returns guidance material for a named dimension.
func (c *Client) GuidanceByDimension(ctx context.Context, dimension string) string {
	if c.config.GuidanceByDimension == "" {
		return ""
	}
	return c.cached(ctx, c.config.GuidanceByDimension, dimension, func() string {
		return c.fetchText(ctx, c.config.GuidanceByDimension, "dimension", dimension)
	})
}

// KnowledgeQuery runs a free-form knowledge-base query.
func (c *Client) KnowledgeQuery(ctx context.Context, query string) string {
	if c.config.KnowledgeBaseURL == "" {
		return ""
	}
	return c.cached(ctx, c.config.KnowledgeBaseURL, query, func() string {
		return c.fetchText(ctx, c.config.KnowledgeBaseURL, "query", query)
	})
}

// getJSON performs the GET-style lookup (profile endpoint).
func (c *Client) getJSON(ctx context.Context, endpoint, subjectID string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s?userId=%s", endpoint, url.QueryEscape(subjectID)), nil)
	if err != nil {
		return nil, err
	}
	return c.doLookup(req)
}

// postJSON performs the POST-style lookup (assessment endpoints).
func (c *Client) postJSON(ctx context.Context, endpoint, subjectID string) (json.RawMessage, error) {
	payload, _ := json.Marshal(map[string]string{"userId": subjectID})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.doLookup(req)
}

func (c *Client) doLookup(req *http.Request) (json.RawMessage, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var envelope apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("failed to decode lookup response: %w", err)
	}
	if envelope.ResultCode != 200 {
		return nil, fmt.Errorf("lookup rejected: %s", envelope.ResultMsg)
	}
	return envelope.Data, nil
}

// fetchText performs a simple keyed lookup whose data payload is plain text.
func (c *Client) fetchText(ctx context.Context, endpoint, param, value string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s?%s=%s", endpoint, param, url.QueryEscape(value)), nil)
	if err != nil {
		return ""
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("text lookup failed", zap.String("endpoint", endpoint), zap.Error(err))
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ""
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ""
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.ResultCode == 200 {
		var text string
		if err := json.Unmarshal(envelope.Data, &text); err == nil {
			return text
		}
		return string(envelope.Data)
	}
	return string(body)
}
