package pcgcp

import (
	"context"
	"fmt"
	"slices"

	"golang.org/x/oauth2"
	crm "google.golang.org/api/cloudresourcemanager/v1"
	"google.golang.org/api/option"
)

// ProjectLister returns the display names of the projects the token's owner can see
type ProjectLister interface {
	ListProjects(ctx context.Context, token *oauth2.Token) ([]string, error)
}

// CloudResourceManagerLister lists projects with the Cloud Resource Manager v1 API
type CloudResourceManagerLister struct {
	// Options are appended after the token source, e.g. option.WithEndpoint in tests
	Options []option.ClientOption
}

func (l *CloudResourceManagerLister) ListProjects(ctx context.Context, token *oauth2.Token) ([]string, error) {
	opts := append([]option.ClientOption{option.WithTokenSource(oauth2.StaticTokenSource(token))}, l.Options...)
	svc, err := crm.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource manager client: %w", err)
	}

	names := []string{}
	err = svc.Projects.List().Pages(ctx, func(resp *crm.ListProjectsResponse) error {
		for _, p := range resp.Projects {
			names = append(names, p.Name)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return names, nil
}

// StaticProjectLister returns a fixed list, for development mode
type StaticProjectLister []string

func (s StaticProjectLister) ListProjects(ctx context.Context, token *oauth2.Token) ([]string, error) {
	if s == nil {
		return []string{}, nil
	}
	return slices.Clone([]string(s)), nil
}
