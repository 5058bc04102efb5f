package storage

import (
	"context"

	"github.com/pkg/errors"
	"sigs.k8s.io/yaml"

	"github.com/scbot-go/scbot/internal/domain"
)

// Snapshot is the YAML import/export contract for persisted state,
// named in spec.md's out-of-scope list ("JSON import/export of
// persisted state"); the `import` and `export` commands in cmd/scbot
// drive it, and the contract type they serialize lives here.
type Snapshot struct {
	Repositories []RepositorySnapshot `json:"repositories"`
}

// RepositorySnapshot nests one Repository with its owned PullRequests,
// since neither is meaningful without the other on reimport.
type RepositorySnapshot struct {
	domain.Repository `json:",inline"`
	PullRequests       []domain.PullRequest `json:"pull_requests"`
}

// Export walks every repository and its pull requests into a Snapshot.
func Export(ctx context.Context, store Interface) (*Snapshot, error) {
	repos, err := store.ListRepositories(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list repositories")
	}

	allPRs, err := store.ListAllPullRequests(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list pull requests")
	}

	snap := &Snapshot{Repositories: make([]RepositorySnapshot, 0, len(repos))}
	for _, repo := range repos {
		var owned []domain.PullRequest
		for _, pr := range allPRs {
			if pr.RepositoryID == repo.ID {
				owned = append(owned, pr)
			}
		}
		snap.Repositories = append(snap.Repositories, RepositorySnapshot{Repository: repo, PullRequests: owned})
	}
	return snap, nil
}

// Import recreates every repository and pull request a Snapshot names,
// skipping rows that already exist (matched by owner/name and number)
// so Import is safe to run more than once against the same store.
func Import(ctx context.Context, store Interface, snap *Snapshot) error {
	for _, rs := range snap.Repositories {
		repo := rs.Repository
		existing, err := store.GetRepository(ctx, repo.Owner, repo.Name)
		if IsNotFound(err) {
			if err := store.CreateRepository(ctx, &repo); err != nil {
				return errors.Wrapf(err, "create repository %s/%s", repo.Owner, repo.Name)
			}
		} else if err != nil {
			return errors.Wrapf(err, "get repository %s/%s", repo.Owner, repo.Name)
		} else {
			repo = *existing
		}

		for _, pr := range rs.PullRequests {
			pr.RepositoryID = repo.ID
			if _, err := store.GetPullRequest(ctx, repo.ID, pr.Number); IsNotFound(err) {
				if err := store.CreatePullRequest(ctx, &pr); err != nil {
					return errors.Wrapf(err, "create pull request %s/%s#%d", repo.Owner, repo.Name, pr.Number)
				}
			} else if err != nil {
				return errors.Wrapf(err, "get pull request %s/%s#%d", repo.Owner, repo.Name, pr.Number)
			}
		}
	}
	return nil
}

// MarshalSnapshot and UnmarshalSnapshot give the CLI front-end a plain
// []byte <-> Snapshot boundary, so it never needs to import
// sigs.k8s.io/yaml directly.
func MarshalSnapshot(snap *Snapshot) ([]byte, error) {
	return yaml.Marshal(snap)
}

func UnmarshalSnapshot(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, errors.Wrap(err, "unmarshal snapshot")
	}
	return &snap, nil
}
