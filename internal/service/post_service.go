package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"scholarsite/internal/cache"
	apperrors "scholarsite/internal/errors"
	"scholarsite/internal/logging"
	"scholarsite/internal/model"
	"scholarsite/internal/repository"
)

const (
	postCacheTTL          = 5 * time.Minute
	publishedListCacheKey = "posts:published"
	publishedListLimit    = 50
)

// PostInput carries the editable fields of a post.
type PostInput struct {
	Title     string
	Slug      string
	Summary   string
	Body      string
	Published bool
}

// PostService handles blog authoring and public reads.
type PostService interface {
	Create(ctx context.Context, authorID uuid.UUID, in PostInput) (*model.Post, error)
	Update(ctx context.Context, id uuid.UUID, in PostInput) (*model.Post, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListAll(ctx context.Context) ([]model.Post, error)
	ListPublished(ctx context.Context) ([]model.Post, error)
	GetPublishedBySlug(ctx context.Context, slug string) (*model.Post, error)
}

type postService struct {
	repo  repository.PostRepository
	cache *cache.Client
	log   logging.Logger
	now   func() time.Time
}

// NewPostService creates a new post service.
func NewPostService(repo repository.PostRepository, cache *cache.Client, log logging.Logger) PostService {
	return &postService{repo: repo, cache: cache, log: log, now: time.Now}
}

func slugCacheKey(slug string) string {
	return fmt.Sprintf("post:slug:%s", slug)
}

func resolveSlug(in PostInput) (string, error) {
	slug := model.Slugify(in.Slug)
	if slug == "" {
		slug = model.Slugify(in.Title)
	}
	if slug == "" {
		return "", apperrors.ErrInvalidSlug
	}
	return slug, nil
}

// Create stores a new post. A published post gets PublishedAt set to now.
func (s *postService) Create(ctx context.Context, authorID uuid.UUID, in PostInput) (*model.Post, error) {
	slug, err := resolveSlug(in)
	if err != nil {
		return nil, err
	}

	post := &model.Post{
		ID:        uuid.New(),
		Title:     strings.TrimSpace(in.Title),
		Slug:      slug,
		Summary:   in.Summary,
		Body:      in.Body,
		Published: in.Published,
		AuthorID:  authorID,
	}
	if post.Published {
		now := s.now()
		post.PublishedAt = &now
	}

	if err := s.repo.Create(ctx, post); err != nil {
		return nil, postStoreErr("create post", err)
	}
	s.invalidate(ctx, post.Slug)
	s.log.Info(ctx, "post created", "post_id", post.ID, "slug", post.Slug, "published", post.Published)
	return post, nil
}

// Update replaces the editable fields. PublishedAt is set on the first
// transition to published and cleared when unpublished.
func (s *postService) Update(ctx context.Context, id uuid.UUID, in PostInput) (*model.Post, error) {
	post, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, postStoreErr("get post", err)
	}
	slug, err := resolveSlug(in)
	if err != nil {
		return nil, err
	}
	oldSlug := post.Slug

	post.Title = strings.TrimSpace(in.Title)
	post.Slug = slug
	post.Summary = in.Summary
	post.Body = in.Body
	switch {
	case in.Published && !post.Published:
		now := s.now()
		post.PublishedAt = &now
	case !in.Published:
		post.PublishedAt = nil
	}
	post.Published = in.Published

	if err := s.repo.Update(ctx, post); err != nil {
		return nil, postStoreErr("update post", err)
	}
	s.invalidate(ctx, oldSlug, post.Slug)
	s.log.Info(ctx, "post updated", "post_id", post.ID, "slug", post.Slug, "published", post.Published)
	return post, nil
}

func (s *postService) Delete(ctx context.Context, id uuid.UUID) error {
	post, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return postStoreErr("get post", err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return postStoreErr("delete post", err)
	}
	s.invalidate(ctx, post.Slug)
	s.log.Info(ctx, "post deleted", "post_id", id)
	return nil
}

func (s *postService) ListAll(ctx context.Context) ([]model.Post, error) {
	posts, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, postStoreErr("list posts", err)
	}
	return posts, nil
}

// ListPublished returns the newest published posts, served from cache when possible.
func (s *postService) ListPublished(ctx context.Context) ([]model.Post, error) {
	if data, _ := s.cache.Get(ctx, publishedListCacheKey); data != nil {
		var cached []model.Post
		if err := json.Unmarshal(data, &cached); err == nil {
			return cached, nil
		}
	}

	posts, err := s.repo.ListPublished(ctx, publishedListLimit)
	if err != nil {
		return nil, postStoreErr("list published posts", err)
	}

	if payload, err := json.Marshal(posts); err == nil {
		_ = s.cache.Set(ctx, publishedListCacheKey, payload, postCacheTTL)
	}
	return posts, nil
}

// GetPublishedBySlug retrieves a published post by slug with caching.
func (s *postService) GetPublishedBySlug(ctx context.Context, slug string) (*model.Post, error) {
	key := slugCacheKey(slug)
	if data, _ := s.cache.Get(ctx, key); data != nil {
		var cached model.Post
		if err := json.Unmarshal(data, &cached); err == nil {
			return &cached, nil
		}
	}

	post, err := s.repo.FindPublishedBySlug(ctx, slug)
	if err != nil {
		return nil, postStoreErr("get post", err)
	}

	if payload, err := json.Marshal(post); err == nil {
		_ = s.cache.Set(ctx, key, payload, postCacheTTL)
	}
	return post, nil
}

func (s *postService) invalidate(ctx context.Context, slugs ...string) {
	keys := []string{publishedListCacheKey}
	for _, slug := range slugs {
		keys = append(keys, slugCacheKey(slug))
	}
	_ = s.cache.Delete(ctx, keys...)
}

func postStoreErr(op string, err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperrors.ErrPostNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apperrors.ErrSlugTaken
	default:
		return fmt.Errorf("%w: %s: %v", apperrors.ErrStoreUnavailable, op, err)
	}
}
