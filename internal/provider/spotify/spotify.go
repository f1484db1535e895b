// Package spotify implements the Spotify-specific provider client: there is
// no official Go SDK in this stack, so it speaks the Web API's REST surface
// directly over net/http, the same way the rest of this codebase wraps bare
// HTTP endpoints behind a narrow client type.
package spotify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/ejohane/zine-sub/internal/model"
	"github.com/ejohane/zine-sub/internal/provider"
	"github.com/ejohane/zine-sub/internal/token"
)

const (
	apiBase   = "https://api.spotify.com/v1"
	tokenURL  = "https://accounts.spotify.com/api/token"
	userAgent = "zine-sub/1.0"

	// showBatchChunkSize bounds a single shows-metadata lookup request.
	showBatchChunkSize = 50

	// ShowCacheTTL is the TTL the Spotify poller writes show-metadata KV
	// cache entries with. The cache is not read back: every batch
	// show-metadata lookup calls the API.
	ShowCacheTTL = 6 * time.Hour

	// EpisodeFetchConcurrency is the default semaphore width for bounding
	// concurrent episode-list fetches across a poll wave.
	EpisodeFetchConcurrency = 5
)

// Client wraps the Spotify Web API for one user's access token.
type Client struct {
	httpClient *http.Client
	token      string
}

// NewClient builds a Client authorized with accessToken.
func NewClient(accessToken string) *Client {
	return &Client{httpClient: &http.Client{Timeout: 15 * time.Second}, token: accessToken}
}

// Show is the subset of Spotify's show object the poller needs.
type Show struct {
	ID            string
	Name          string
	Description   string
	ImageURL      string
	TotalEpisodes int
}

// Episode is the subset of Spotify's episode object the poller needs.
type Episode struct {
	ID             string
	Name           string
	Description    string
	ImageURL       string
	DurationMillis int64
	ReleaseDate    string // YYYY, YYYY-MM, or YYYY-MM-DD
	IsPlayable     bool
	ShowID         string
	ShowName       string
	ShowImageURL   string
}

// BatchShowDetails fetches show metadata for ids, chunked at
// showBatchChunkSize ids per request. A show absent from the response
// (deleted/region-restricted) is simply absent from the result map.
func (c *Client) BatchShowDetails(ctx context.Context, showIDs []string) (map[string]Show, error) {
	out := make(map[string]Show, len(showIDs))

	for start := 0; start < len(showIDs); start += showBatchChunkSize {
		end := start + showBatchChunkSize
		if end > len(showIDs) {
			end = len(showIDs)
		}
		chunk := showIDs[start:end]

		var resp struct {
			Shows []struct {
				ID            string `json:"id"`
				Name          string `json:"name"`
				Description   string `json:"description"`
				Images        []struct{ URL string `json:"url"` } `json:"images"`
				TotalEpisodes int    `json:"total_episodes"`
			} `json:"shows"`
		}
		q := url.Values{"ids": {strings.Join(chunk, ",")}}
		if err := c.get(ctx, "/shows", q, &resp); err != nil {
			return nil, err
		}
		for _, s := range resp.Shows {
			if s.ID == "" {
				continue
			}
			var img string
			if len(s.Images) > 0 {
				img = s.Images[0].URL
			}
			out[s.ID] = Show{ID: s.ID, Name: s.Name, Description: s.Description,
				ImageURL: img, TotalEpisodes: s.TotalEpisodes}
		}
	}
	return out, nil
}

// ListEpisodes fetches up to limit most recent episodes for showID.
func (c *Client) ListEpisodes(ctx context.Context, showID string, limit int) ([]Episode, error) {
	var resp struct {
		Items []struct {
			ID          string `json:"id"`
			Name        string `json:"name"`
			Description string `json:"description"`
			Images      []struct{ URL string `json:"url"` } `json:"images"`
			DurationMs  int64  `json:"duration_ms"`
			ReleaseDate string `json:"release_date"`
			IsPlayable  bool   `json:"is_playable"`
		} `json:"items"`
	}
	q := url.Values{"limit": {strconv.Itoa(limit)}, "market": {"US"}}
	if err := c.get(ctx, fmt.Sprintf("/shows/%s/episodes", url.PathEscape(showID)), q, &resp); err != nil {
		return nil, err
	}

	episodes := make([]Episode, 0, len(resp.Items))
	for _, it := range resp.Items {
		var img string
		if len(it.Images) > 0 {
			img = it.Images[0].URL
		}
		episodes = append(episodes, Episode{
			ID: it.ID, Name: it.Name, Description: it.Description, ImageURL: img,
			DurationMillis: it.DurationMs, ReleaseDate: it.ReleaseDate,
			IsPlayable: it.IsPlayable, ShowID: showID,
		})
	}
	return episodes, nil
}

// ListSavedShows lists the shows the authenticated user has saved on
// Spotify itself, for discover.available.
func (c *Client) ListSavedShows(ctx context.Context, limit int) ([]provider.DiscoverItem, error) {
	var resp struct {
		Items []struct {
			Show struct {
				ID          string `json:"id"`
				Name        string `json:"name"`
				Description string `json:"description"`
				Images      []struct {
					URL string `json:"url"`
				} `json:"images"`
			} `json:"show"`
		} `json:"items"`
	}
	q := url.Values{"limit": {strconv.Itoa(limit)}}
	if err := c.get(ctx, "/me/shows", q, &resp); err != nil {
		return nil, err
	}

	items := make([]provider.DiscoverItem, 0, len(resp.Items))
	for _, it := range resp.Items {
		if it.Show.ID == "" {
			continue
		}
		var img string
		if len(it.Show.Images) > 0 {
			img = it.Show.Images[0].URL
		}
		items = append(items, provider.DiscoverItem{
			ProviderChannelID: it.Show.ID,
			Name:              it.Show.Name,
			ImageURL:          img,
			Description:       it.Show.Description,
			ExternalURL:       "https://open.spotify.com/show/" + it.Show.ID,
		})
	}
	return items, nil
}

// SearchShows searches Spotify's public show directory, for discover.search.
func (c *Client) SearchShows(ctx context.Context, query string, limit int) ([]provider.DiscoverItem, error) {
	var resp struct {
		Shows struct {
			Items []struct {
				ID          string `json:"id"`
				Name        string `json:"name"`
				Description string `json:"description"`
				Images      []struct {
					URL string `json:"url"`
				} `json:"images"`
			} `json:"items"`
		} `json:"shows"`
	}
	q := url.Values{"q": {query}, "type": {"show"}, "limit": {strconv.Itoa(limit)}, "market": {"US"}}
	if err := c.get(ctx, "/search", q, &resp); err != nil {
		return nil, err
	}

	items := make([]provider.DiscoverItem, 0, len(resp.Shows.Items))
	for _, it := range resp.Shows.Items {
		if it.ID == "" {
			continue
		}
		var img string
		if len(it.Images) > 0 {
			img = it.Images[0].URL
		}
		items = append(items, provider.DiscoverItem{
			ProviderChannelID: it.ID,
			Name:              it.Name,
			ImageURL:          img,
			Description:       it.Description,
			ExternalURL:       "https://open.spotify.com/show/" + it.ID,
		})
	}
	return items, nil
}

// Decode narrows an Episode into DecodedItem. publishedAtMillis must already
// have been normalized from the show's ReleaseDate precision.
func Decode(ep Episode, publishedAtMillis int64) provider.DecodedItem {
	desc := ep.Description
	duration := ep.DurationMillis / 1000
	published := publishedAtMillis
	thumb := ep.ShowImageURL
	if thumb == "" {
		thumb = ep.ImageURL
	}

	return provider.DecodedItem{
		ContentType:       model.ContentTypePodcast,
		ProviderID:        ep.ID,
		CanonicalURL:      fmt.Sprintf("https://open.spotify.com/episode/%s", ep.ID),
		Title:             ep.Name,
		ThumbnailURL:      &thumb,
		Duration:          &duration,
		PublishedAt:       &published,
		Summary:           &desc,
		CreatorProviderID: ep.ShowID,
		CreatorName:       ep.ShowName,
		CreatorImageURL:   &thumb,
	}
}

// NormalizeReleaseDate parses Spotify's variable-precision release_date
// (YYYY, YYYY-MM, or YYYY-MM-DD) into epoch millis at UTC midnight.
func NormalizeReleaseDate(s string) (int64, bool) {
	layouts := []string{"2006-01-02", "2006-01", "2006"}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli(), true
		}
	}
	return 0, false
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := apiBase + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return provider.NewError(provider.KindInternal, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return provider.NewError(provider.KindTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return classifyStatus(resp.StatusCode, fmt.Errorf("spotify: %s returned %d", path, resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return provider.NewError(provider.KindInternal, fmt.Errorf("spotify: decode %s: %w", path, err))
	}
	return nil
}

func classifyStatus(status int, err error) error {
	switch status {
	case http.StatusUnauthorized:
		return provider.NewError(provider.KindTokenExpired, err)
	case http.StatusForbidden:
		return provider.NewError(provider.KindAccessRevoked, err)
	case http.StatusTooManyRequests:
		return provider.NewError(provider.KindRateLimited, err)
	case http.StatusNotFound:
		return provider.NewError(provider.KindContentUnavailable, err)
	default:
		if status >= 500 {
			return provider.NewError(provider.KindTransient, err)
		}
		return provider.NewError(provider.KindInternal, err)
	}
}

// TokenExchanger implements token.Refresher against Spotify's Accounts
// service token endpoint using Basic auth with a registered app's client
// credentials.
type TokenExchanger struct {
	ClientID     string
	ClientSecret string
	HTTPClient   *http.Client
}

// Refresh exchanges refreshToken for a new access token via the
// refresh_token grant. Failures are returned as *token.ClassifiableError so
// the token service never parses a Spotify response body itself.
func (e *TokenExchanger) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	client := e.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	form := url.Values{"grant_type": {"refresh_token"}, "refresh_token": {refreshToken}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, bytes.NewBufferString(form.Encode()))
	if err != nil {
		return nil, &token.ClassifiableError{Kind: token.KindTransient, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(e.ClientID, e.ClientSecret)

	resp, err := client.Do(req)
	if err != nil {
		return nil, &token.ClassifiableError{Kind: token.KindTransient, Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusBadRequest {
			return nil, &token.ClassifiableError{Kind: token.KindRefreshInvalid,
				Err: fmt.Errorf("spotify: refresh rejected: %s", body)}
		}
		if resp.StatusCode == http.StatusForbidden {
			return nil, &token.ClassifiableError{Kind: token.KindAccessRevoked,
				Err: fmt.Errorf("spotify: refresh forbidden: %s", body)}
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, &token.ClassifiableError{Kind: token.KindRateLimited,
				Err: fmt.Errorf("spotify: token endpoint rate limited")}
		}
		return nil, &token.ClassifiableError{Kind: token.KindTransient,
			Err: fmt.Errorf("spotify: token endpoint returned %d", resp.StatusCode)}
	}

	var parsed struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &token.ClassifiableError{Kind: token.KindTransient,
			Err: fmt.Errorf("spotify: decode token response: %w", err)}
	}

	return &oauth2.Token{
		AccessToken: parsed.AccessToken,
		TokenType:   parsed.TokenType,
		Expiry:      time.Now().Add(time.Duration(parsed.ExpiresIn) * time.Second),
	}, nil
}
