package models

import "strings"

// DefaultPrincipal is the single implicit principal all store operations run
// under. Multi-tenant deployments would replace this with a real identity.
const DefaultPrincipal = "default"

// UnsortedContainerID is the bookmark store's pseudo-container holding
// bookmarks that were never filed anywhere.
const UnsortedContainerID int64 = -1

// Tag is one vocabulary entry in the bookmark store, unique by lower-cased
// name within a principal.
type Tag struct {
	Name string `json:"name"`
}

// Container is a named bucket in the bookmark store. IDs are opaque integers
// assigned by the store.
type Container struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// FindContainer returns the container whose title matches case-insensitively,
// or nil when absent.
func FindContainer(containers []Container, title string) *Container {
	for i := range containers {
		if strings.EqualFold(containers[i].Title, title) {
			return &containers[i]
		}
	}
	return nil
}

// Bookmark is a stored entity in the bookmark store. For a given
// (container, url) pair at most one bookmark should exist; the pipeline
// enforces this before inserting and tolerates duplicates it discovers later.
type Bookmark struct {
	ID          int64    `json:"id"`
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	ContainerID int64    `json:"container_id"`
	Tags        []string `json:"tags"`
}
