package stock

import (
	"context"

	errors "github.com/Laisky/errors/v2"
)

// ListUsers returns profiles newest first, optionally filtered by role.
func (s *Service) ListUsers(ctx context.Context, req ListUsersRequest) ([]UserProfile, error) {
	profiles, err := s.store.ListProfiles(ctx, BuildProfileQuery(req))
	if err != nil {
		return nil, errors.Wrap(err, "list users")
	}
	return profiles, nil
}

// GetUser returns the single profile matching the id or username.
func (s *Service) GetUser(ctx context.Context, req GetUserRequest) (*UserProfile, error) {
	matches, err := s.store.FindProfiles(ctx, ProfileLookup(req))
	if err != nil {
		return nil, errors.Wrap(err, "find user")
	}
	if len(matches) != 1 {
		return nil, newNotFoundError("user", notFoundMessage("user")).
			WithDetail("matches", len(matches))
	}
	return &matches[0], nil
}
