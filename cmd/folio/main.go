package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/kskor/folio/internal/auth"
	"github.com/kskor/folio/internal/business"
	"github.com/kskor/folio/internal/config"
	"github.com/kskor/folio/internal/docstore"
	"github.com/kskor/folio/internal/domain"
	"github.com/kskor/folio/internal/github"
	"github.com/kskor/folio/internal/log"
	"github.com/kskor/folio/internal/paging"
	"github.com/kskor/folio/internal/store"
	"golang.org/x/term"
)

// Version is set at build time via -ldflags
var Version = "dev"

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	dimStyle   = lipgloss.NewStyle().Faint(true)
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

func main() {
	var showVersion bool
	flag.BoolVar(&showVersion, "v", false, "print version")
	flag.BoolVar(&showVersion, "version", false, "print version")
	flag.Parse()

	if showVersion {
		fmt.Printf("folio %s\n", Version)
		return
	}

	if err := run(flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app bundles the wired collaborators. Everything is constructed once at
// startup and handed down explicitly.
type app struct {
	cfg     *config.Config
	creds   *config.Holder
	api     *github.Repository
	local   *docstore.Repository
	docs    *docstore.Store
	authSvc *auth.Service
	palette *domain.StackPalette
	logger  *slog.Logger
}

func run(args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := log.Setup(cfg.Logging.File, cfg.Logging.Level)
	if err != nil {
		// Fall back to a silent logger if file logging fails
		logger = log.Discard()
	}
	slog.SetDefault(logger)
	logger.Info("starting folio", "version", Version)

	creds := config.NewHolder(cfg, func(c config.Credentials) error {
		cfg.GitHub.User = c.User
		cfg.GitHub.Token = c.Token
		cfg.GitHub.SignInMethod = c.SignInMethod
		return config.SaveConfig(cfg)
	})

	apiClient := github.NewClient("", creds, logger)
	api := github.NewRepository(apiClient, creds, cfg.Store.PageSize, logger)

	docs, err := docstore.NewStore(cfg.Store.Path, cfg.Store.PageSize, logger)
	if err != nil {
		return fmt.Errorf("failed to open document store: %w", err)
	}
	defer docs.Close()

	vault, err := auth.NewVault(cfg.Store.Path, logger)
	if err != nil {
		return fmt.Errorf("failed to open identity vault: %w", err)
	}
	defer vault.Close()

	resolver := func(ctx context.Context, token string) (domain.Provider, error) {
		creds.Apply(config.Update{Token: config.String(token)})
		u, err := apiClient.GetUser(ctx)
		if err != nil {
			return domain.Provider{}, err
		}
		return domain.Provider{
			UID:      u.Login,
			Name:     u.Name,
			Email:    u.Email,
			PhotoURL: u.AvatarURL,
		}, nil
	}
	prompt := func(userCode, verificationURI string) {
		fmt.Println()
		fmt.Printf("  Go to: %s\n", verificationURI)
		fmt.Printf("  Enter code: %s\n", titleStyle.Render(userCode))
		fmt.Println()
		fmt.Println("Waiting for authorization...")
	}
	device := auth.NewDeviceClient("", "", "", logger)
	authSvc := auth.NewService(vault, device, creds, resolver, prompt, logger)

	a := &app{
		cfg:     cfg,
		creds:   creds,
		api:     api,
		docs:    docs,
		authSvc: authSvc,
		palette: domain.NewStackPalette(nil),
		logger:  logger,
	}
	a.local = docstore.NewRepository(docs, func() (string, bool) {
		account, ok := authSvc.CurrentAccount()
		return account.ID, ok
	}, logger)

	if len(args) == 0 {
		return a.status(context.Background())
	}

	ctx := context.Background()
	if err := authSvc.Init(ctx); err != nil {
		return err
	}

	switch args[0] {
	case "login":
		return a.login(ctx, args[1:])
	case "logout":
		return a.logout(ctx)
	case "import":
		return a.runImport(ctx)
	case "list":
		return a.list(ctx, args[1:])
	case "show":
		return a.show(ctx, args[1:])
	case "search":
		return a.search(ctx, args[1:])
	case "profile":
		return a.profile(ctx)
	case "delete-account":
		return a.deleteAccount(ctx)
	default:
		usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func usage() {
	fmt.Println("Usage: folio <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  login           sign in (github, email or guest)")
	fmt.Println("  logout          sign out")
	fmt.Println("  import          import your remote projects")
	fmt.Println("  list            list imported projects")
	fmt.Println("  search <query>  fuzzy-search imported projects")
	fmt.Println("  show <id>       show one project")
	fmt.Println("  profile         show or bootstrap your profile")
	fmt.Println("  delete-account  delete the local account")
}

func (a *app) status(ctx context.Context) error {
	if err := a.authSvc.Init(ctx); err != nil {
		return err
	}
	if account, ok := a.authSvc.CurrentAccount(); ok {
		name := account.Name
		if name == "" {
			name = account.ID
		}
		fmt.Printf("Signed in as %s\n", titleStyle.Render(name))
	} else {
		fmt.Println("Not signed in.")
	}
	usage()
	return nil
}

// runEffects attaches the effects subscription before launching the
// intent, so effects posted ahead of the first poll are buffered instead
// of dropped, then prints them until the job finishes.
func runEffects[S any](st *store.Store[S], launch func() *store.Job) {
	effects, detach := st.Subscribe()
	defer detach()
	job := launch()
	for {
		select {
		case <-job.Done():
			return
		case effect, ok := <-effects:
			if !ok {
				return
			}
			printEffect(effect)
		}
	}
}

func printEffect(effect store.Effect) {
	switch e := effect.(type) {
	case store.Toast:
		fmt.Println(okStyle.Render(e.Message))
	case store.SyncNote:
		fmt.Println(okStyle.Render(e.Message))
	case store.ErrorEffect:
		fmt.Println(errStyle.Render("✗ " + e.Err.Error()))
	case store.AccountExists:
		fmt.Println(errStyle.Render("✗ " + e.Err.Error()))
		fmt.Println("Run 'folio login -github -link' to link the accounts instead.")
	case store.Trace:
		fmt.Println(dimStyle.Render(e.Message))
	}
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	var (
		guest   = fs.Bool("guest", false, "sign in anonymously")
		email   = fs.String("email", "", "sign in with email")
		create  = fs.Bool("create", false, "register a new email account")
		link    = fs.Bool("link", false, "link provider to the current account")
		refresh = fs.Bool("refresh", false, "force a fresh provider token")
	)
	fs.Parse(args)

	var password string
	if *email != "" {
		fmt.Print("Password: ")
		raw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		password = string(raw)
	}

	login := business.NewLogin(ctx, a.authSvc, a.api, a.creds, a.logger)
	defer login.Close()

	runEffects(login.Store(), func() *store.Job {
		switch {
		case *guest:
			return login.LoginAnonymous()
		case *email != "":
			return login.LoginEmail(*email, password, *create)
		case *link:
			return login.LinkGitHub()
		default:
			return login.LoginGitHub(*refresh, false)
		}
	})
	login.Store().Wait()

	switch s := login.Store().State().(type) {
	case business.Authenticated:
		name := s.User.Account.Name
		if name == "" {
			name = s.User.Account.ID
		}
		fmt.Printf("%s Signed in as %s\n", okStyle.Render("✓"), name)
		return a.bootstrapProfile(ctx)
	case business.LoginError:
		return fmt.Errorf("sign-in failed: %s", s.Reason)
	default:
		return nil
	}
}

func (a *app) bootstrapProfile(ctx context.Context) error {
	bootstrap := business.NewBootstrap(ctx, a.authSvc, a.docs, a.logger)
	defer bootstrap.Close()

	runEffects(bootstrap.Store(), bootstrap.Check)
	bootstrap.Store().Wait()

	if s, ok := bootstrap.Store().State().(business.NewlyCreated); ok {
		fmt.Printf("Created a profile for %s. Edit it with 'folio profile'.\n", s.Name)
	}
	return nil
}

func (a *app) logout(ctx context.Context) error {
	login := business.NewLogin(ctx, a.authSvc, a.api, a.creds, a.logger)
	defer login.Close()

	runEffects(login.Store(), login.Logout)
	login.Store().Wait()
	fmt.Println("Signed out.")
	return nil
}

func (a *app) deleteAccount(ctx context.Context) error {
	reader := bufio.NewReader(os.Stdin)
	fmt.Print("Delete the local account and sign out? [y/N]: ")
	answer, _ := reader.ReadString('\n')
	if strings.ToLower(strings.TrimSpace(answer)) != "y" {
		fmt.Println("Aborted.")
		return nil
	}

	login := business.NewLogin(ctx, a.authSvc, a.api, a.creds, a.logger)
	defer login.Close()

	runEffects(login.Store(), login.Delete)
	login.Store().Wait()
	fmt.Println("Account deleted.")
	return nil
}

func (a *app) runImport(ctx context.Context) error {
	importer := business.NewImporter(ctx, a.authSvc, a.api, a.api, a.api, a.docs, a.creds, a.logger)
	defer importer.Close()

	runEffects(importer.Store(), importer.Check)

	if s, ok := importer.Store().State().(business.SourceAvailable); ok && s.HasSynced {
		fmt.Println(dimStyle.Render("Re-importing will replace previously imported projects."))
	}

	// Progress updates ride the lossy watcher; the terminal verdict comes
	// from re-reading State() once every intent has drained, so a dropped
	// watcher send cannot hang the loop.
	states, unwatch := importer.Store().Watch()
	defer unwatch()
	effects, detach := importer.Store().Subscribe()
	defer detach()

	job := importer.Run()
	for {
		select {
		case state := <-states:
			if s, ok := state.(business.ImportProgress); ok {
				fmt.Printf("\r[%d/%d] %-40s", s.Done, s.Total, s.Current)
			}
		case effect, ok := <-effects:
			if !ok {
				effects = nil
				continue
			}
			printEffect(effect)
		case <-job.Done():
			importer.Store().Wait()
			switch s := importer.Store().State().(type) {
			case business.ImportCompleted:
				fmt.Printf("\n%s Imported %d projects\n", okStyle.Render("✓"), s.Count)
				return nil
			case business.ImportError:
				fmt.Println()
				return fmt.Errorf("import failed: %s", s.Reason)
			default:
				fmt.Println()
				return nil
			}
		}
	}
}

func (a *app) list(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	var (
		phrase   = fs.String("search", "", "filter by phrase")
		category = fs.String("category", "", "filter by stack category")
		featured = fs.Bool("featured", false, "only followed projects")
		pages    = fs.Int("pages", 1, "number of pages to print")
	)
	fs.Parse(args)

	filter := business.NewFilter(ctx, a.logger)
	defer filter.Close()
	filter.SetPhrase(*phrase).Join()
	if *category != "" {
		filter.SetCategories([]string{*category}).Join()
	}
	filter.SetOnlyFeatured(*featured).Join()

	list := business.NewList(ctx, a.local, a.local, filter, a.logger)
	defer list.Close()

	pager := paging.NewPager[domain.Project](list, a.logger)

	key := ""
	for n := 0; n < *pages; n++ {
		result := pager.Load(ctx, key)
		if len(result.Items) == 0 {
			if n == 0 {
				fmt.Println("No projects. Run 'folio import' first.")
			}
			return nil
		}
		for _, p := range result.Items {
			a.printProjectLine(p)
		}
		if result.NextKey == "" {
			return nil
		}
		key = result.NextKey
	}
	return nil
}

func (a *app) search(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: folio search <query>")
	}
	account, ok := a.authSvc.CurrentAccount()
	if !ok {
		return domain.ErrNotSignedIn
	}
	results, err := a.docs.Search(ctx, account.ID, strings.Join(args, " "))
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("No matches.")
		return nil
	}
	for _, p := range results {
		a.printProjectLine(p)
	}
	return nil
}

func (a *app) show(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: folio show <project-id>")
	}
	account, ok := a.authSvc.CurrentAccount()
	if !ok {
		return domain.ErrNotSignedIn
	}

	edition := business.NewEdition(ctx, a.docs, a.authSvc, a.palette, a.logger)
	defer edition.Close()

	runEffects(edition.Store(), func() *store.Job {
		return edition.Load(account.ID, args[0])
	})
	edition.Store().Wait()

	switch s := edition.Store().State().(type) {
	case business.ProjectLoaded:
		a.printProjectDetail(s.Project)
		return nil
	case business.ProjectError:
		return fmt.Errorf("%s", s.Reason)
	default:
		return nil
	}
}

func (a *app) profile(ctx context.Context) error {
	bootstrap := business.NewBootstrap(ctx, a.authSvc, a.docs, a.logger)
	defer bootstrap.Close()

	runEffects(bootstrap.Store(), bootstrap.Check)
	bootstrap.Store().Wait()

	switch s := bootstrap.Store().State().(type) {
	case business.AlreadyCreated:
		p := s.Profile
		fmt.Println(titleStyle.Render(p.DisplayName()))
		if p.Title != "" {
			fmt.Println(p.Title)
		}
		fmt.Printf("Experience: %s years\n", p.FormattedExperience())
		if p.Location != "" {
			fmt.Println(dimStyle.Render(p.Location))
		}
		if p.About != "" {
			fmt.Println()
			fmt.Println(p.About)
		}
	case business.NewlyCreated:
		fmt.Printf("Created a profile for %s.\n", s.Name)
	case business.ProfileError:
		return fmt.Errorf("%s", s.Reason)
	}
	return nil
}

func (a *app) printProjectLine(p domain.Project) {
	name := titleStyle.Render(p.Name)
	lang := p.MainLanguage()
	if lang != "" {
		color := a.palette.Pick(lang)
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(hexColor(color)))
		lang = style.Render("● " + lang)
	}
	line := fmt.Sprintf("%s  %s", name, lang)
	if p.FollowersCount > 0 {
		line += dimStyle.Render(fmt.Sprintf("  ♥ %d", p.FollowersCount))
	}
	fmt.Println(line)
	if p.Description != "" {
		fmt.Println("  " + dimStyle.Render(p.Description))
	}
}

func (a *app) printProjectDetail(p domain.Project) {
	fmt.Println(titleStyle.Render(p.Name))
	if p.Description != "" {
		fmt.Println(p.Description)
	}
	fmt.Println()
	for _, s := range p.Stack {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(hexColor(s.Color)))
		fmt.Printf("  %s %-20s %5.1f%%\n", style.Render("●"), s.Name, s.Percent)
	}
	if p.FollowersCount > 0 {
		fmt.Println()
		fmt.Printf("Followed by %d\n", p.FollowersCount)
	}
	if p.Favorite {
		fmt.Println(okStyle.Render("★ In your favorites"))
	}
}

// hexColor renders an 0xAARRGGBB palette color as a lipgloss hex string.
func hexColor(c uint32) string {
	return fmt.Sprintf("#%06X", c&0xFFFFFF)
}
