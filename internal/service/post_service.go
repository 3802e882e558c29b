package service

import (
	"context"
	"strings"

	"circles/internal/authz"
	"circles/internal/models"
	"circles/internal/repository"
	"circles/internal/validation"
)

// PostService creates, reads and deletes posts and builds the member feed.
type PostService struct {
	posts       repository.PostRepository
	circles     repository.CircleRepository
	memberships repository.MembershipRepository
}

type CreatePostInput struct {
	AuthorID uint
	Title    string
	Content  string
	// CircleID is nil for a public post.
	CircleID *uint
}

// NewPostService returns a PostService.
func NewPostService(posts repository.PostRepository, circles repository.CircleRepository, memberships repository.MembershipRepository) *PostService {
	return &PostService{posts: posts, circles: circles, memberships: memberships}
}

// Create stores a post. Circle posts require membership; public posts do not.
func (s *PostService) Create(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	title := strings.TrimSpace(in.Title)
	if err := validation.ValidatePostTitle(title); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, models.NewValidationError("content is required")
	}

	if in.CircleID != nil {
		if _, err := s.circles.GetByID(ctx, *in.CircleID); err != nil {
			return nil, err
		}
		role, err := roleIn(ctx, s.memberships, *in.CircleID, in.AuthorID)
		if err != nil {
			return nil, err
		}
		if err := authorize(authz.Request{Action: authz.CreatePost, Actor: role}); err != nil {
			return nil, err
		}
	}

	post := &models.Post{
		Title:    title,
		Content:  in.Content,
		AuthorID: in.AuthorID,
		CircleID: in.CircleID,
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return nil, err
	}
	return s.posts.GetByID(ctx, post.ID)
}

// Get returns a post. Circle posts are visible to members only.
func (s *PostService) Get(ctx context.Context, postID, requesterID uint) (*models.Post, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.CircleID == nil {
		return post, nil
	}

	role, err := roleIn(ctx, s.memberships, *post.CircleID, requesterID)
	if err != nil {
		return nil, err
	}
	if err := authorize(authz.Request{Action: authz.ViewCircle, Actor: role}); err != nil {
		return nil, err
	}
	return post, nil
}

// Delete removes a post if the requester wrote it or manages its circle.
func (s *PostService) Delete(ctx context.Context, postID, requesterID uint) error {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return err
	}

	var role *models.Role
	if post.CircleID != nil {
		role, err = roleIn(ctx, s.memberships, *post.CircleID, requesterID)
		if err != nil {
			return err
		}
	}
	if err := authorize(authz.Request{
		Action:   authz.DeletePost,
		Actor:    role,
		IsAuthor: post.AuthorID == requesterID,
	}); err != nil {
		return err
	}

	return s.posts.Delete(ctx, postID)
}

// Feed lists posts from the requester's circles, newest first. A user with
// no memberships gets an empty slice.
func (s *PostService) Feed(ctx context.Context, requesterID uint, limit, offset int) ([]models.Post, error) {
	posts, err := s.posts.Feed(ctx, requesterID, limit, offset)
	if err != nil {
		return nil, err
	}
	if posts == nil {
		posts = []models.Post{}
	}
	return posts, nil
}
