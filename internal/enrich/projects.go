package enrich

import (
	"context"
	"regexp"

	"github.com/google/go-github/v81/github"
	"go.uber.org/zap"
)

// Project is a public repository belonging to the candidate, included in the
// structuring prompt as enrichment data.
type Project struct {
	RepositoryName string `json:"repository_name"`
	Description    string `json:"description"`
	RepositoryURL  string `json:"repository_url"`
}

var (
	profileURLRe = regexp.MustCompile(`https?://github\.com/\S+`)
	usernameRe   = regexp.MustCompile(`https?://github\.com/([^/\s]+)/?`)
)

// ProjectFetcher lists a candidate's public GitHub projects.
type ProjectFetcher struct {
	client *Client
	logger *zap.Logger
}

// NewProjectFetcher creates a fetcher using the given client.
func NewProjectFetcher(client *Client, logger *zap.Logger) *ProjectFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProjectFetcher{client: client, logger: logger}
}

// ExtractProfileURL returns the first GitHub profile URL found in the CV
// text, or "" if none is present.
func ExtractProfileURL(text string) string {
	return profileURLRe.FindString(text)
}

// ExtractUsername pulls the GitHub username out of a profile URL, or ""
// if the URL does not match.
func ExtractUsername(profileURL string) string {
	m := usernameRe.FindStringSubmatch(profileURL)
	if m == nil {
		return ""
	}
	return m[1]
}

// FetchProjects lists all public repositories for the profile URL found in
// the CV text. Enrichment is best-effort: any failure degrades to an empty
// list and never rejects the CV.
func (f *ProjectFetcher) FetchProjects(ctx context.Context, profileURL string) []Project {
	if profileURL == "" {
		return nil
	}

	username := ExtractUsername(profileURL)
	if username == "" {
		f.logger.Warn("no GitHub username extracted, skipping project fetching",
			zap.String("url", profileURL))
		return nil
	}

	f.logger.Info("fetching GitHub projects", zap.String("user", username))

	var projects []Project
	opts := &github.RepositoryListByUserOptions{
		ListOptions: github.ListOptions{PerPage: 100},
	}

	for {
		repos, resp, err := f.client.Repositories.ListByUser(ctx, username, opts)
		if err != nil {
			f.logger.Warn("failed to fetch GitHub repos", zap.Error(err))
			break
		}

		for _, repo := range repos {
			description := repo.GetDescription()
			if description == "" {
				description = "No description provided"
			}
			projects = append(projects, Project{
				RepositoryName: repo.GetName(),
				Description:    description,
				RepositoryURL:  repo.GetHTMLURL(),
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	f.logger.Info("GitHub projects fetched", zap.Int("count", len(projects)))
	return projects
}
