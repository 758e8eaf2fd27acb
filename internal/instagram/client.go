package instagram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/gramvault/gramvault/internal/model"
)

const (
	defaultBaseURL = "https://www.instagram.com"
	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
)

var usernamePattern = regexp.MustCompile(`instagram\.com/([^/?#]+)`)

// Client talks to the public web_profile_info endpoint. BaseURL and the HTTP
// client are configurable so tests can point at a local server.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient constructs a Client against the real Instagram endpoints.
func NewClient() *Client {
	return &Client{
		baseURL: defaultBaseURL,
		http:    &http.Client{},
	}
}

// NewClientWithBase constructs a Client against an alternate endpoint.
func NewClientWithBase(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{baseURL: baseURL, http: httpClient}
}

// webProfileResponse mirrors the subset of the web_profile_info payload we
// consume.
type webProfileResponse struct {
	Data struct {
		User struct {
			Username      string `json:"username"`
			FullName      string `json:"full_name"`
			ProfilePicURL string `json:"profile_pic_url_hd"`
			Timeline      struct {
				Count int `json:"count"`
				Edges []struct {
					Node mediaNode `json:"node"`
				} `json:"edges"`
			} `json:"edge_owner_to_timeline_media"`
			FollowedBy struct {
				Count int `json:"count"`
			} `json:"edge_followed_by"`
			Follow struct {
				Count int `json:"count"`
			} `json:"edge_follow"`
		} `json:"user"`
	} `json:"data"`
}

type mediaNode struct {
	ID         string `json:"id"`
	Typename   string `json:"__typename"`
	DisplayURL string `json:"display_url"`
	VideoURL   string `json:"video_url"`
	TakenAt    int64  `json:"taken_at_timestamp"`
	Caption    struct {
		Edges []struct {
			Node struct {
				Text string `json:"text"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"edge_media_to_caption"`
	SidecarChildren struct {
		Edges []struct {
			Node mediaNode `json:"node"`
		} `json:"edges"`
	} `json:"edge_sidecar_to_children"`
}

// FetchProfile returns public metadata for the profile behind sourceURL.
func (c *Client) FetchProfile(ctx context.Context, sourceURL string) (*model.ProfileData, error) {
	resp, err := c.fetchUserInfo(ctx, sourceURL)
	if err != nil {
		return nil, err
	}
	user := resp.Data.User
	if user.Username == "" {
		return nil, fmt.Errorf("%w: profile unavailable", ErrProvider)
	}
	displayName := user.FullName
	if displayName == "" {
		displayName = user.Username
	}
	return &model.ProfileData{
		Username:       user.Username,
		DisplayName:    displayName,
		ProfilePicURL:  user.ProfilePicURL,
		PostsCount:     user.Timeline.Count,
		FollowersCount: user.FollowedBy.Count,
		FollowingCount: user.Follow.Count,
	}, nil
}

// ListMedia returns one MediaItem per downloadable unit, with sidecar posts
// flattened into their children and the contentType filter already applied.
// Stories are not reachable without an authenticated session, so a stories
// request yields an empty list rather than an error.
func (c *Client) ListMedia(ctx context.Context, sourceURL string, contentType model.ContentType) ([]MediaItem, error) {
	if contentType == model.ContentStories {
		log.Printf("instagram: stories are unavailable for public profiles")
		return nil, nil
	}
	resp, err := c.fetchUserInfo(ctx, sourceURL)
	if err != nil {
		return nil, err
	}
	items := make([]MediaItem, 0, len(resp.Data.User.Timeline.Edges))
	for _, edge := range resp.Data.User.Timeline.Edges {
		items = append(items, flattenNode(edge.Node)...)
	}
	return filterItems(items, contentType), nil
}

// flattenNode turns a timeline node into media items. A sidecar contributes
// one item per child, each classified by its own type; the caption and
// timestamp come from the parent post.
func flattenNode(node mediaNode) []MediaItem {
	caption := ""
	if len(node.Caption.Edges) > 0 {
		caption = node.Caption.Edges[0].Node.Text
	}
	takenAt := time.Unix(node.TakenAt, 0).UTC()
	if node.Typename == "GraphSidecar" {
		items := make([]MediaItem, 0, len(node.SidecarChildren.Edges))
		for _, child := range node.SidecarChildren.Edges {
			item := itemFromNode(child.Node)
			item.Caption = caption
			item.TakenAt = takenAt
			items = append(items, item)
		}
		return items
	}
	item := itemFromNode(node)
	item.Caption = caption
	item.TakenAt = takenAt
	return []MediaItem{item}
}

func itemFromNode(node mediaNode) MediaItem {
	if node.Typename == "GraphVideo" {
		return MediaItem{
			ID:           node.ID,
			Kind:         KindVideo,
			URL:          node.VideoURL,
			ThumbnailURL: node.DisplayURL,
			Filename:     node.ID + ".mp4",
		}
	}
	return MediaItem{
		ID:           node.ID,
		Kind:         KindImage,
		URL:          node.DisplayURL,
		ThumbnailURL: node.DisplayURL,
		Filename:     node.ID + ".jpg",
	}
}

func filterItems(items []MediaItem, contentType model.ContentType) []MediaItem {
	if contentType == model.ContentAll {
		return items
	}
	var want MediaKind
	switch contentType {
	case model.ContentImages:
		want = KindImage
	case model.ContentVideos:
		want = KindVideo
	case model.ContentStories:
		want = KindStory
	}
	filtered := items[:0]
	for _, item := range items {
		if item.Kind == want {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

// DownloadMedia fetches each item into destDir/<kind>s/<filename>. A failed
// item is logged and skipped; partial success is a valid outcome. Quality is
// accepted for parity with the session request but the public endpoints
// expose a single rendition per item.
func (c *Client) DownloadMedia(ctx context.Context, items []MediaItem, _ model.Quality, destDir string) ([]string, error) {
	downloaded := make([]string, 0, len(items))
	for _, item := range items {
		path := filepath.Join(destDir, string(item.Kind)+"s", item.Filename)
		if err := c.downloadOne(ctx, item.URL, path); err != nil {
			log.Printf("instagram: download %s: %v", item.ID, err)
			continue
		}
		downloaded = append(downloaded, path)
	}
	return downloaded, nil
}

func (c *Client) downloadOne(ctx context.Context, url, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create media dir: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("fetch media: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch media: unexpected status %d", resp.StatusCode)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create media file: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		os.Remove(path)
		return fmt.Errorf("write media file: %w", err)
	}
	return nil
}

func (c *Client) fetchUserInfo(ctx context.Context, sourceURL string) (*webProfileResponse, error) {
	username, err := ExtractUsername(sourceURL)
	if err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("%s/api/v1/users/web_profile_info/?username=%s", c.baseURL, username)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrProvider, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch profile info: %v", ErrProvider, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrProvider, resp.StatusCode)
	}
	var payload webProfileResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode profile info: %v", ErrProvider, err)
	}
	return &payload, nil
}

// ExtractUsername pulls the profile handle out of an instagram.com URL.
func ExtractUsername(sourceURL string) (string, error) {
	match := usernamePattern.FindStringSubmatch(sourceURL)
	if match == nil {
		return "", fmt.Errorf("%w: not an instagram profile url", ErrProvider)
	}
	return match[1], nil
}
