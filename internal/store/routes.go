package store

// Route names a navigation target carried by a Navigate effect. The core
// does not own a navigation table; routes are opaque to it.
type Route interface{ route() }

type RouteWelcome struct{}
type RouteHome struct{}
type RouteList struct{}
type RouteProfileSetup struct{}
type RouteSourceImport struct{}
type RouteImportProgress struct{}

// RouteDetails points at one project's detail view.
type RouteDetails struct {
	OwnerID   string
	ProjectID string
}

// RouteError points at the error screen with a human-readable reason.
type RouteError struct{ Reason string }

func (RouteWelcome) route()        {}
func (RouteHome) route()           {}
func (RouteList) route()           {}
func (RouteProfileSetup) route()   {}
func (RouteSourceImport) route()   {}
func (RouteImportProgress) route() {}
func (RouteDetails) route()        {}
func (RouteError) route()          {}
