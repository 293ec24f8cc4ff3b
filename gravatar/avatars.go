package gravatar

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// AvatarParams controls avatar rendering. Zero values mean "let Gravatar
// decide".
type AvatarParams struct {
	// Size in pixels, 1 to 2048.
	Size int
	// Default selects the fallback style when no avatar exists
	// (404, mp, identicon, monsterid, wavatar, retro, robohash, blank).
	Default string
	// ForceDefault always serves the fallback image.
	ForceDefault bool
	// Rating caps the content rating (g, pg, r, x).
	Rating string
}

// Avatar is a fetched avatar image.
type Avatar struct {
	Data     []byte
	MIMEType string
}

// FetchAvatar downloads the avatar image for an identifier.
func (c *Client) FetchAvatar(ctx context.Context, identifier string, params AvatarParams) (*Avatar, error) {
	if identifier == "" {
		return nil, ErrEmptyInput
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := c.avatarBase + "/" + url.PathEscape(identifier)
	q := url.Values{}
	if params.Size > 0 {
		q.Set("s", strconv.Itoa(params.Size))
	}
	if params.Default != "" {
		q.Set("d", params.Default)
	}
	if params.ForceDefault {
		q.Set("f", "y")
	}
	if params.Rating != "" {
		q.Set("r", params.Rating)
	}
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("avatar request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, avatarError(resp.StatusCode, resp.Status, identifier)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read avatar body: %w", err)
	}

	return &Avatar{Data: data, MIMEType: detectMIMEType(resp)}, nil
}

// detectMIMEType trusts the Content-Type header when it names an image and
// falls back to PNG, which is what Gravatar serves by default.
func detectMIMEType(resp *http.Response) string {
	ct := resp.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "image/") {
		return ct
	}
	return "image/png"
}

func avatarError(status int, statusText, identifier string) *APIError {
	var msg string
	switch status {
	case http.StatusNotFound:
		msg = fmt.Sprintf("No avatar found for identifier: %s", identifier)
	case http.StatusBadRequest:
		msg = fmt.Sprintf("Invalid avatar request parameters for identifier: %s", identifier)
	case http.StatusForbidden:
		msg = fmt.Sprintf("Avatar access denied for identifier: %s", identifier)
	case http.StatusTooManyRequests:
		msg = "Rate limit exceeded. Please try again later"
	default:
		msg = fmt.Sprintf("Failed to fetch avatar (%d): %s", status, statusText)
	}
	return &APIError{Status: status, Message: msg}
}
