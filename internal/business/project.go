package business

import (
	"context"
	"log/slog"

	"github.com/kskor/folio/internal/domain"
	"github.com/kskor/folio/internal/store"
)

// ProjectState is the closed variant set of the project detail feature.
type ProjectState interface{ projectState() }

type ProjectLoading struct{}

type ProjectLoaded struct{ Project domain.Project }

type ProjectError struct{ Reason string }

func (ProjectLoading) projectState() {}
func (ProjectLoaded) projectState()  {}
func (ProjectError) projectState()   {}

// Edition drives the project detail screen: load one project, follow or
// unfollow it, and save edits.
type Edition struct {
	store     *store.Store[ProjectState]
	directory domain.Directory
	auth      domain.Authenticator
	palette   *domain.StackPalette
	logger    *slog.Logger
}

func NewEdition(ctx context.Context, directory domain.Directory, auth domain.Authenticator, palette *domain.StackPalette, logger *slog.Logger) *Edition {
	if logger == nil {
		logger = slog.Default()
	}
	if palette == nil {
		palette = domain.NewStackPalette(nil)
	}
	return &Edition{
		store:     store.New[ProjectState](ctx, ProjectLoading{}, logger),
		directory: directory,
		auth:      auth,
		palette:   palette,
		logger:    logger,
	}
}

func (e *Edition) Store() *store.Store[ProjectState] { return e.store }

func (e *Edition) Close() { e.store.Close() }

// Load fetches one project, recolors its stack, computes the favorite flag
// for the current user, and routes to the detail view.
func (e *Edition) Load(ownerID, projectID string) *store.Job {
	return e.store.Intent("load_project", func(ctx context.Context, tx *store.Tx[ProjectState]) {
		tx.Reduce(func(ProjectState) ProjectState { return ProjectLoading{} })

		project, err := e.directory.GetProject(ctx, ownerID, projectID)
		if err != nil {
			e.logger.Error("project load failed", "owner", ownerID, "id", projectID, "error", err)
			tx.Update(func(ProjectState) ProjectState { return ProjectError{Reason: err.Error()} })
			tx.Post(store.ErrorEffect{Err: err})
			return
		}

		uid := ""
		if account, ok := e.auth.CurrentAccount(); ok {
			uid = account.ID
		}
		project = e.palette.Colorize(project, uid)

		tx.Update(func(ProjectState) ProjectState { return ProjectLoaded{Project: project} })
		tx.Post(store.Navigate{Route: store.RouteDetails{OwnerID: ownerID, ProjectID: projectID}})
	})
}

// SetProject seeds the store with an already-fetched project, recolored.
// Used when navigating from a list that holds the full entity.
func (e *Edition) SetProject(project domain.Project) *store.Job {
	return e.store.Intent("set_project", func(ctx context.Context, tx *store.Tx[ProjectState]) {
		tx.Sub(func(ctx context.Context, tx *store.Tx[ProjectState]) {
			uid := ""
			if account, ok := e.auth.CurrentAccount(); ok {
				uid = account.ID
			}
			colored := e.palette.Colorize(project, uid)
			tx.Update(func(ProjectState) ProjectState { return ProjectLoaded{Project: colored} })
		})
	})
}

// Follow adds (or removes) the current user from the loaded project's
// follower list. Rejected without state change when nobody is signed in or
// no project is loaded; the remote write lands first, then local state is
// updated optimistically.
func (e *Edition) Follow(follow bool) *store.Job {
	return e.store.Intent("follow_project", func(ctx context.Context, tx *store.Tx[ProjectState]) {
		loaded, ok := tx.State().(ProjectLoaded)
		if !ok {
			tx.Post(store.ErrorEffect{Err: domain.ErrNotFound})
			return
		}

		account, signedIn := e.auth.CurrentAccount()
		if !signedIn || account.Anonymous {
			e.logger.Debug("follow rejected, not signed in")
			tx.Post(store.ErrorEffect{Err: domain.ErrNotSignedIn})
			return
		}

		project := loaded.Project
		if follow == project.FollowedBy(account.ID) {
			// Already in the requested membership, nothing to do
			return
		}

		follower := domain.Follower{UID: account.ID, Name: account.Name}
		if err := e.directory.ToggleFollow(ctx, project.CreatedBy, project.ID, follower, follow); err != nil {
			e.logger.Error("follow toggle failed", "project", project.ID, "error", err)
			tx.Post(store.ErrorEffect{Err: err})
			return
		}

		tx.Update(func(s ProjectState) ProjectState {
			current, ok := s.(ProjectLoaded)
			if !ok {
				return s
			}
			current.Project = applyFollow(current.Project, follower, follow)
			return current
		})
	})
}

// Save persists edits to the loaded project. Only the owner may edit.
func (e *Edition) Save(project domain.Project) *store.Job {
	return e.store.Intent("save_project", func(ctx context.Context, tx *store.Tx[ProjectState]) {
		account, signedIn := e.auth.CurrentAccount()
		if !signedIn {
			tx.Post(store.ErrorEffect{Err: domain.ErrNotSignedIn})
			return
		}
		if !project.CanEdit(account.ID) {
			tx.Post(store.ErrorEffect{Err: domain.ErrAuthFailed})
			return
		}

		id, err := e.directory.UpdateProject(ctx, account.ID, project.ID, project)
		if err != nil {
			e.logger.Error("project save failed", "id", project.ID, "error", err)
			tx.Update(func(ProjectState) ProjectState { return ProjectError{Reason: err.Error()} })
			tx.Post(store.ErrorEffect{Err: err})
			return
		}
		project.ID = id

		colored := e.palette.Colorize(project, account.ID)
		tx.Update(func(ProjectState) ProjectState { return ProjectLoaded{Project: colored} })
		tx.Post(store.Toast{Message: "Project saved"})
	})
}

// applyFollow returns a copy of project with the follower added or removed
// exactly once.
func applyFollow(project domain.Project, follower domain.Follower, follow bool) domain.Project {
	var followers []domain.Follower
	for _, f := range project.Followers {
		if f.UID == follower.UID {
			continue
		}
		followers = append(followers, f)
	}
	if follow {
		followers = append(followers, follower)
	}
	project.Followers = followers
	project.FollowersCount = len(followers)
	project.Favorite = follow
	return project
}
