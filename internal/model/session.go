// Package model contains the download session entity and the request types
// shared between the HTTP layer, the store, and the pipeline.
package model

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// SessionStatus describes the lifecycle of a download session.
type SessionStatus string

const (
	StatusPending    SessionStatus = "pending"
	StatusProcessing SessionStatus = "processing"
	StatusCompleted  SessionStatus = "completed"
	StatusFailed     SessionStatus = "failed"
)

// Terminal reports whether the session will never transition again.
func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Quality is the requested media quality.
type Quality string

const (
	QualityHighest Quality = "highest"
	QualityHigh    Quality = "high"
	QualityMedium  Quality = "medium"
	QualityLow     Quality = "low"
)

// ContentType filters which media kinds are collected.
type ContentType string

const (
	ContentAll     ContentType = "all"
	ContentImages  ContentType = "images"
	ContentVideos  ContentType = "videos"
	ContentStories ContentType = "stories"
)

// ProfileData holds the public profile metadata captured during processing.
type ProfileData struct {
	Username       string `json:"username"`
	DisplayName    string `json:"displayName"`
	ProfilePicURL  string `json:"profilePicUrl"`
	PostsCount     int    `json:"postsCount"`
	FollowersCount int    `json:"followersCount"`
	FollowingCount int    `json:"followingCount"`
}

// MediaStats counts the media items discovered for a session, by kind.
// Total always equals Images + Videos + Stories.
type MediaStats struct {
	Total   int `json:"total"`
	Images  int `json:"images"`
	Videos  int `json:"videos"`
	Stories int `json:"stories"`
}

// Session is one user-initiated download request and its tracked lifecycle.
// ArchivePath stays server-side and is never serialized to clients.
type Session struct {
	ID          string        `json:"id"`
	SourceURL   string        `json:"sourceUrl"`
	Quality     Quality       `json:"quality"`
	ContentType ContentType   `json:"contentType"`
	Status      SessionStatus `json:"status"`
	Progress    int           `json:"progress"`
	ProfileData *ProfileData  `json:"profileData"`
	MediaStats  *MediaStats   `json:"mediaStats"`
	ArchivePath string        `json:"-"`
	CreatedAt   time.Time     `json:"createdAt"`
	ExpiresAt   time.Time     `json:"expiresAt"`
}

// Expired reports whether the session has passed its expiry deadline.
func (s *Session) Expired(now time.Time) bool {
	return s.ExpiresAt.Before(now)
}

// ErrValidation wraps every request validation failure so the HTTP layer can
// map it to a 400 without inspecting messages.
var ErrValidation = errors.New("invalid request")

// CreateRequest is the payload accepted by the session creation endpoint.
type CreateRequest struct {
	SourceURL   string      `json:"sourceUrl"`
	Quality     Quality     `json:"quality,omitempty"`
	ContentType ContentType `json:"contentType,omitempty"`
}

// Normalize applies defaults and validates the request in place.
func (r *CreateRequest) Normalize() error {
	if r.Quality == "" {
		r.Quality = QualityHighest
	}
	if r.ContentType == "" {
		r.ContentType = ContentAll
	}
	switch r.Quality {
	case QualityHighest, QualityHigh, QualityMedium, QualityLow:
	default:
		return fmt.Errorf("%w: unknown quality %q", ErrValidation, r.Quality)
	}
	switch r.ContentType {
	case ContentAll, ContentImages, ContentVideos, ContentStories:
	default:
		return fmt.Errorf("%w: unknown content type %q", ErrValidation, r.ContentType)
	}
	u, err := url.Parse(r.SourceURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: source url must be absolute", ErrValidation)
	}
	if !strings.Contains(u.Host, "instagram.com") {
		return fmt.Errorf("%w: source url must be an instagram.com profile", ErrValidation)
	}
	return nil
}
