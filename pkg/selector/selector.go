// Package selector asks the language model which collection a playlist or
// video belongs in, constrained to the collections that actually exist.
package selector

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/tagmark/tagmark/pkg/llm"
	"github.com/tagmark/tagmark/pkg/models"
)

// containerStore is the slice of the bookmark service the selector needs.
type containerStore interface {
	ListContainers(ctx context.Context, principal string) ([]models.Container, error)
	CreateContainer(ctx context.Context, title string) (int64, error)
	PlaylistMapping(playlistID string) (string, bool)
	StorePlaylistMapping(playlistID, title string)
}

// videoLister fetches a playlist's videos for the sample-title block.
type videoLister interface {
	ListPlaylistVideos(ctx context.Context, playlistID string) ([]models.VideoRef, error)
}

// Selector chooses a destination collection title. Whatever happens, the
// returned title is a member of the store's current collection list: either
// the model's validated choice or the fallback collection, which is created
// on first use.
type Selector struct {
	store    containerStore
	videos   videoLister
	llm      llm.Client
	fallback string
	log      *slog.Logger
}

// New creates a Selector. fallback is the collection title used whenever
// the model cannot or should not decide.
func New(store containerStore, videos videoLister, model llm.Client, fallback string) *Selector {
	return &Selector{
		store:    store,
		videos:   videos,
		llm:      model,
		fallback: fallback,
		log:      slog.With("component", "selector"),
	}
}

// SelectForPlaylist returns the collection title for a playlist.
//
// Decisions backed by a model answer are cached per playlist; degraded
// outcomes (no collections, no sample videos, model unreachable) fall back
// without caching so the next run can try again.
func (s *Selector) SelectForPlaylist(ctx context.Context, principal string, playlist models.Playlist) (string, error) {
	if title, ok := s.store.PlaylistMapping(playlist.ID); ok {
		s.log.Debug("reusing cached collection choice", "playlist_id", playlist.ID, "collection", title)
		return title, nil
	}

	containers, err := s.store.ListContainers(ctx, principal)
	if err != nil {
		return "", err
	}
	if len(containers) == 0 {
		s.log.Warn("no collections available, using fallback", "playlist_id", playlist.ID)
		return s.ensureFallback(ctx, containers)
	}

	samples, err := s.videos.ListPlaylistVideos(ctx, playlist.ID)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return "", err
		}
		s.log.Warn("could not sample playlist videos, using fallback",
			"playlist_id", playlist.ID, "error", err)
		return s.ensureFallback(ctx, containers)
	}
	if len(samples) == 0 {
		s.log.Warn("playlist has no videos to judge by, using fallback", "playlist_id", playlist.ID)
		return s.ensureFallback(ctx, containers)
	}

	answer, err := s.llm.Generate(ctx, buildPlaylistPrompt(containers, playlist, samples))
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return "", err
		}
		// A model outage is the same as the model declining: fall back,
		// but do not pin the degraded choice in the mapping cache.
		s.log.Warn("model selection failed, treating as low confidence",
			"playlist_id", playlist.ID, "error", err)
		return s.ensureFallback(ctx, containers)
	}

	title, err := s.resolveChoice(ctx, strings.TrimSpace(answer), containers)
	if err != nil {
		return "", err
	}
	s.store.StorePlaylistMapping(playlist.ID, title)
	s.log.Info("collection selected", "playlist_id", playlist.ID, "collection", title)
	return title, nil
}

// SelectForVideo returns the collection title for a single video. Unlike
// playlists, single-video choices are not cached.
func (s *Selector) SelectForVideo(ctx context.Context, principal string, video models.VideoRef) (string, error) {
	containers, err := s.store.ListContainers(ctx, principal)
	if err != nil {
		return "", err
	}
	if len(containers) == 0 {
		s.log.Warn("no collections available, using fallback", "video_id", video.VideoID)
		return s.ensureFallback(ctx, containers)
	}

	answer, err := s.llm.Generate(ctx, buildVideoPrompt(containers, video))
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return "", err
		}
		s.log.Warn("model selection failed, treating as low confidence",
			"video_id", video.VideoID, "error", err)
		return s.ensureFallback(ctx, containers)
	}

	return s.resolveChoice(ctx, strings.TrimSpace(answer), containers)
}

// resolveChoice validates the model's answer against the collection list.
// A match is returned with the list's spelling; LOW_CONFIDENCE and unknown
// titles resolve to the fallback collection.
func (s *Selector) resolveChoice(ctx context.Context, choice string, containers []models.Container) (string, error) {
	if choice != LowConfidence {
		if c := models.FindContainer(containers, choice); c != nil {
			return c.Title, nil
		}
		s.log.Warn("model chose a collection that does not exist, using fallback", "choice", choice)
	}
	return s.ensureFallback(ctx, containers)
}

// ensureFallback returns the fallback collection title, creating the
// collection when the store does not have it yet.
func (s *Selector) ensureFallback(ctx context.Context, containers []models.Container) (string, error) {
	if c := models.FindContainer(containers, s.fallback); c != nil {
		return c.Title, nil
	}
	if _, err := s.store.CreateContainer(ctx, s.fallback); err != nil {
		return "", err
	}
	s.log.Info("created fallback collection", "collection", s.fallback)
	return s.fallback, nil
}
