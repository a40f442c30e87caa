// Package remote is the HTTP client for the meal plan API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"meal-planner/internal/auth"
	"meal-planner/internal/calendar"
	"meal-planner/internal/mealplan"
	"meal-planner/internal/metrics"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
)

const maxBodySize = 4 << 20

// Client is the meal plan API client. It satisfies mealplan.Backend.
type Client interface {
	mealplan.Backend
	SaveRecipe(ctx context.Context, userID string, recipe mealplan.Recipe) error
	RemoveSavedRecipe(ctx context.Context, userID string, recipeID int64) error
	DailyUsage(ctx context.Context, days int) ([]metrics.DailyUsage, error)
	Health(ctx context.Context) (metrics.SysHealth, error)
	BreakerState() string
}

// adminSubject is the token subject used for the admin endpoints.
const adminSubject = "admin"

// Options configures NewClient.
type Options struct {
	BaseURL        string
	Signer         *auth.Signer
	RequestTimeout time.Duration
	// FailureThreshold is the number of consecutive remote failures that opens the breaker.
	FailureThreshold uint32
	// BreakerTimeout is how long the breaker stays open before probing again.
	BreakerTimeout time.Duration
	HTTPClient     *http.Client
	Logger         *slog.Logger
	// OnBreakerChange is called after every breaker state transition.
	OnBreakerChange func(from, to string)
}

type apiClient struct {
	baseURL    string
	signer     *auth.Signer
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[[]byte]
	logger     *slog.Logger
}

// NewClient creates a Client for the API at opts.BaseURL.
func NewClient(opts Options) Client {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}
	if opts.FailureThreshold == 0 {
		opts.FailureThreshold = 5
	}
	if opts.BreakerTimeout <= 0 {
		opts.BreakerTimeout = 30 * time.Second
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.RequestTimeout}
	}

	c := &apiClient{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		signer:     opts.Signer,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "meal-plan-api",
		MaxRequests: 1,
		Timeout:     opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
			if opts.OnBreakerChange != nil {
				opts.OnBreakerChange(from.String(), to.String())
			}
		},
		// Rejections by the API are answers, not outages.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, mealplan.ErrNotFound) || errors.Is(err, mealplan.ErrInvalidArgument)
		},
	})
	return c
}

func (c *apiClient) BreakerState() string {
	return c.breaker.State().String()
}

func (c *apiClient) FetchWeek(ctx context.Context, userID string, weekStart calendar.Date) ([]mealplan.Entry, error) {
	path := userPath(userID, "meal-plan") + "?weekStart=" + url.QueryEscape(weekStart.String())
	body, err := c.do(ctx, "fetch week", http.MethodGet, path, userID, nil, http.StatusOK)
	if err != nil {
		return nil, err
	}
	var entries []mealplan.Entry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, &mealplan.RemoteError{Op: "fetch week", StatusCode: http.StatusOK, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return entries, nil
}

func (c *apiClient) FetchSavedRecipes(ctx context.Context, userID string) ([]mealplan.Recipe, error) {
	body, err := c.do(ctx, "fetch saved recipes", http.MethodGet, userPath(userID, "meal-plan", "saved-recipes"), userID, nil, http.StatusOK)
	if err != nil {
		return nil, err
	}
	var recipes []mealplan.Recipe
	if err := json.Unmarshal(body, &recipes); err != nil {
		return nil, &mealplan.RemoteError{Op: "fetch saved recipes", StatusCode: http.StatusOK, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return recipes, nil
}

func (c *apiClient) AddEntry(ctx context.Context, userID string, req mealplan.AddEntryRequest) error {
	_, err := c.do(ctx, "add entry", http.MethodPost, userPath(userID, "meal-plan"), userID, req, http.StatusCreated)
	return err
}

func (c *apiClient) RemoveEntry(ctx context.Context, userID string, entryID int64) error {
	path := userPath(userID, "meal-plan", strconv.FormatInt(entryID, 10))
	_, err := c.do(ctx, "remove entry", http.MethodDelete, path, userID, nil, http.StatusNoContent)
	return err
}

func (c *apiClient) UpdateStatus(ctx context.Context, userID string, entryID int64, status mealplan.Status) error {
	path := userPath(userID, "meal-plan", strconv.FormatInt(entryID, 10))
	_, err := c.do(ctx, "update status", http.MethodPatch, path, userID, mealplan.UpdateStatusRequest{Status: status}, http.StatusNoContent)
	return err
}

func (c *apiClient) SaveRecipe(ctx context.Context, userID string, recipe mealplan.Recipe) error {
	path := userPath(userID, "saved-recipes", strconv.FormatInt(recipe.RecipeID, 10))
	_, err := c.do(ctx, "save recipe", http.MethodPut, path, userID, recipe, http.StatusNoContent)
	return err
}

func (c *apiClient) RemoveSavedRecipe(ctx context.Context, userID string, recipeID int64) error {
	path := userPath(userID, "saved-recipes", strconv.FormatInt(recipeID, 10))
	_, err := c.do(ctx, "remove saved recipe", http.MethodDelete, path, userID, nil, http.StatusNoContent)
	return err
}

func (c *apiClient) DailyUsage(ctx context.Context, days int) ([]metrics.DailyUsage, error) {
	path := "/admin/metrics?days=" + strconv.Itoa(days)
	body, err := c.do(ctx, "daily usage", http.MethodGet, path, adminSubject, nil, http.StatusOK)
	if err != nil {
		return nil, err
	}
	var usage []metrics.DailyUsage
	if err := json.Unmarshal(body, &usage); err != nil {
		return nil, &mealplan.RemoteError{Op: "daily usage", StatusCode: http.StatusOK, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return usage, nil
}

func (c *apiClient) Health(ctx context.Context) (metrics.SysHealth, error) {
	var health metrics.SysHealth
	body, err := c.do(ctx, "health", http.MethodGet, "/health", adminSubject, nil, http.StatusOK)
	if err != nil {
		return health, err
	}
	if err := json.Unmarshal(body, &health); err != nil {
		return health, &mealplan.RemoteError{Op: "health", StatusCode: http.StatusOK, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return health, nil
}

func userPath(userID string, parts ...string) string {
	return "/api/users/" + url.PathEscape(userID) + "/" + strings.Join(parts, "/")
}

// do runs one request through the breaker and returns the response body when the status
// matches want.
func (c *apiClient) do(ctx context.Context, op, method, path, userID string, payload any, want int) ([]byte, error) {
	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.send(ctx, op, method, path, userID, payload, want)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &mealplan.RemoteError{Op: op, Err: err}
	}
	return body, err
}

func (c *apiClient) send(ctx context.Context, op, method, path, userID string, payload any, want int) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)

	if c.signer != nil {
		token, err := c.signer.Issue(userID)
		if err != nil {
			return nil, fmt.Errorf("failed to create api token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &mealplan.RemoteError{Op: op, Err: fmt.Errorf("failed to execute request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &mealplan.RemoteError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	c.logger.Debug("api request",
		"op", op,
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"request_id", requestID,
	)

	if resp.StatusCode == want {
		return body, nil
	}

	msg := errorMessage(resp.StatusCode, body)
	switch resp.StatusCode {
	case http.StatusBadRequest:
		return nil, fmt.Errorf("%s: %w: %s", op, mealplan.ErrInvalidArgument, msg)
	case http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w: %s", op, mealplan.ErrNotFound, msg)
	default:
		return nil, &mealplan.RemoteError{Op: op, StatusCode: resp.StatusCode, Err: errors.New(msg)}
	}
}

func errorMessage(status int, body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return http.StatusText(status)
}
