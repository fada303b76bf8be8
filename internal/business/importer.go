package business

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kskor/folio/internal/config"
	"github.com/kskor/folio/internal/domain"
	"github.com/kskor/folio/internal/store"
	"golang.org/x/sync/errgroup"
)

// stackFetchLimit caps concurrent stack-detail fetches during an import.
const stackFetchLimit = 4

// ImportState is the closed variant set of the cross-source import feature.
type ImportState interface{ importState() }

type ImportInitialized struct{}

// SourceAvailable means the remote source is reachable for the signed-in
// user. LastSync is zero when the source has never been imported.
type SourceAvailable struct {
	LastSync  int64
	HasSynced bool
}

type ImportConfirmed struct{}

type ImportStarted struct{}

// ImportProgress is emitted once per accumulated item.
type ImportProgress struct {
	Done    int
	Total   int
	Current string
}

type ImportCompleted struct{ Count int }

type ImportError struct{ Reason string }

func (ImportInitialized) importState() {}
func (SourceAvailable) importState()   {}
func (ImportConfirmed) importState()   {}
func (ImportStarted) importState()     {}
func (ImportProgress) importState()    {}
func (ImportCompleted) importState()   {}
func (ImportError) importState()       {}

// Importer streams the user's remote projects page by page, enriches each
// with its stack breakdown, and persists the whole batch in one atomic
// directory write plus a sync timestamp. Cancellation mid-stream stops
// further fetches and skips persistence entirely; a save already in flight
// is joined, never aborted halfway.
type Importer struct {
	store     *store.Store[ImportState]
	auth      domain.Authenticator
	users     domain.UserRepository
	projects  domain.ProjectRepository
	stacks    domain.StackRepository
	directory domain.Directory
	creds     *config.Holder
	logger    *slog.Logger

	mu        sync.Mutex
	importJob *store.Job
	saveJob   *store.Job
}

func NewImporter(
	ctx context.Context,
	auth domain.Authenticator,
	users domain.UserRepository,
	projects domain.ProjectRepository,
	stacks domain.StackRepository,
	directory domain.Directory,
	creds *config.Holder,
	logger *slog.Logger,
) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{
		store:     store.New[ImportState](ctx, ImportInitialized{}, logger),
		auth:      auth,
		users:     users,
		projects:  projects,
		stacks:    stacks,
		directory: directory,
		creds:     creds,
		logger:    logger,
	}
}

func (i *Importer) Store() *store.Store[ImportState] { return i.store }

func (i *Importer) Close() { i.store.Close() }

// Check probes whether the remote source can be imported for the current
// user and surfaces when it was last synced.
func (i *Importer) Check() *store.Job {
	return i.store.Intent("check_source", func(ctx context.Context, tx *store.Tx[ImportState]) {
		account, ok := i.auth.CurrentAccount()
		if !ok {
			tx.Post(store.ErrorEffect{Err: domain.ErrNotSignedIn})
			return
		}
		ts, synced, err := i.directory.LastSyncTimestamp(ctx, account.ID, domain.SourceGitHub)
		if err != nil {
			tx.Sub(i.fail(err))
			return
		}
		tx.Update(func(ImportState) ImportState {
			return SourceAvailable{LastSync: ts, HasSynced: synced}
		})
	})
}

// Confirm records the user's go-ahead and routes to the progress screen.
func (i *Importer) Confirm() *store.Job {
	return i.store.Intent("confirm_import", func(ctx context.Context, tx *store.Tx[ImportState]) {
		tx.Update(func(ImportState) ImportState { return ImportConfirmed{} })
		tx.Post(store.Navigate{Route: store.RouteImportProgress{}})
	})
}

// Run starts the import stream. A previous run still in flight is
// cancelled first. The item batch is owned exclusively by this invocation.
func (i *Importer) Run() *store.Job {
	i.mu.Lock()
	if i.importJob != nil {
		i.importJob.Cancel()
	}
	job := i.store.Intent("run_import", func(ctx context.Context, tx *store.Tx[ImportState]) {
		tx.Update(func(ImportState) ImportState { return ImportStarted{} })

		account, ok := i.auth.CurrentAccount()
		if !ok {
			tx.Sub(i.fail(domain.ErrNotSignedIn))
			return
		}

		// Re-authenticate for a fresh token before the long stream
		user, err := i.auth.SignIn(ctx, domain.SignInRequest{Method: domain.MethodGitHub, Refresh: true})
		if err != nil {
			tx.Sub(i.fail(err))
			return
		}
		if user.OAuthToken != "" {
			i.creds.Apply(config.Update{Token: config.String(user.OAuthToken)})
		}

		total, err := i.users.TotalProjects(ctx)
		if err != nil {
			tx.Sub(i.fail(err))
			return
		}

		i.projects.ResetPaging()

		var batch []domain.Project
		key := ""
		for {
			page, err := i.projects.FetchPage(ctx, key)
			if err != nil {
				tx.Sub(i.fail(err))
				return
			}

			enriched, err := i.enrichStacks(ctx, page.Items)
			if err != nil {
				tx.Sub(i.fail(err))
				return
			}

			for _, item := range enriched {
				item.CreatedBy = account.ID
				item.CreatedByName = account.Name
				batch = append(batch, item)
				done := len(batch)
				name := item.Name
				tx.Update(func(ImportState) ImportState {
					return ImportProgress{Done: done, Total: total, Current: name}
				})
			}

			if page.Paging.IsLastPage || (total > 0 && len(batch) >= total) {
				break
			}
			key = page.Paging.NextPageKey
		}

		if ctx.Err() != nil {
			// Cancelled mid-stream: nothing is persisted
			return
		}
		i.launchSave(account.ID, batch)
	})
	i.importJob = job
	i.mu.Unlock()
	return job
}

// enrichStacks fetches every item's language breakdown with bounded
// concurrency.
func (i *Importer) enrichStacks(ctx context.Context, items []domain.Project) ([]domain.Project, error) {
	enriched := make([]domain.Project, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(stackFetchLimit)
	for idx, item := range items {
		idx, item := idx, item
		g.Go(func() error {
			stack, err := i.stacks.FetchStack(gctx, item.Name)
			if err != nil {
				return fmt.Errorf("stack for %q: %w", item.Name, err)
			}
			item.Stack = stack
			enriched[idx] = item
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return enriched, nil
}

// launchSave persists the finished batch as its own tracked job so a racing
// Cancel can join it instead of tearing it apart.
func (i *Importer) launchSave(uid string, batch []domain.Project) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.saveJob = i.store.Intent("save_import", func(ctx context.Context, tx *store.Tx[ImportState]) {
		if err := i.directory.SyncProjects(ctx, uid, batch, domain.SourceGitHub); err != nil {
			tx.Sub(i.fail(err))
			return
		}
		tx.Update(func(ImportState) ImportState { return ImportCompleted{Count: len(batch)} })
		tx.Post(store.SyncNote{Message: fmt.Sprintf("Imported %d projects", len(batch))})
		tx.Post(store.Navigate{Route: store.RouteHome{}})
	})
}

// Cancel stops the stream. Partial batches are never persisted; if the
// stream already finished and a save is in flight, the save is joined so
// the all-or-nothing write completes untouched.
func (i *Importer) Cancel() {
	i.mu.Lock()
	importJob := i.importJob
	i.mu.Unlock()

	if importJob != nil {
		importJob.Cancel()
		importJob.Join()
	}

	// The save is registered at the tail of the stream, so it can appear
	// while the join above is in progress. Re-read it after the join.
	i.mu.Lock()
	saveJob := i.saveJob
	i.mu.Unlock()
	if saveJob != nil {
		saveJob.Join()
	}

	i.store.Intent("cancel_import", func(ctx context.Context, tx *store.Tx[ImportState]) {
		tx.Update(func(s ImportState) ImportState {
			if done, ok := s.(ImportCompleted); ok {
				return done
			}
			return ImportInitialized{}
		})
	})
}

func (i *Importer) fail(err error) func(ctx context.Context, tx *store.Tx[ImportState]) {
	return func(ctx context.Context, tx *store.Tx[ImportState]) {
		if ctx.Err() != nil {
			return
		}
		i.logger.Error("import failed", "error", err)
		tx.Update(func(ImportState) ImportState { return ImportError{Reason: err.Error()} })
		tx.Post(store.ErrorEffect{Err: err})
	}
}
