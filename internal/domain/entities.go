package domain

import (
	"fmt"
	"strings"
)

// Source identifies an external project provider.
type Source string

const (
	SourceGitHub Source = "github"
)

// Stack is one language/technology slice of a project.
type Stack struct {
	Name    string  `json:"name"`
	Percent float64 `json:"percent"`
	Color   uint32  `json:"color,omitempty"` // 0xAARRGGBB, assigned by the palette
}

// Follower is a user who favorited a project.
type Follower struct {
	UID  string `json:"uid"`
	Name string `json:"name"`
}

// AccessRole grants a user a role on a project.
type AccessRole struct {
	UID  string `json:"uid"`
	Role Role   `json:"role"`
}

// Role is an access level on a project.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleEditor Role = "editor"
	RoleReader Role = "reader"
)

// Project is a single portfolio entry. Instances are value snapshots;
// updates produce copies, never in-place mutation.
type Project struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Description    string       `json:"description,omitempty"`
	Stack          []Stack      `json:"stack,omitempty"`
	ImageURL       string       `json:"imageUrl,omitempty"`
	FollowersCount int          `json:"followersCount"`
	Followers      []Follower   `json:"followers,omitempty"`
	Favorite       bool         `json:"favorite"`
	CreatedBy      string       `json:"createdBy"`
	CreatedByName  string       `json:"createdByName,omitempty"`
	CreatedOn      int64        `json:"createdOn"`
	Coauthors      []string     `json:"coauthors,omitempty"`
	Public         bool         `json:"public"`
	Source         Source       `json:"source,omitempty"`
	Roles          []AccessRole `json:"roles,omitempty"`
}

// CanEdit reports whether uid owns the project.
func (p Project) CanEdit(uid string) bool { return p.CreatedBy == uid }

// FollowedBy reports whether uid appears in the follower list.
func (p Project) FollowedBy(uid string) bool {
	for _, f := range p.Followers {
		if f.UID == uid {
			return true
		}
	}
	return false
}

// MainLanguage returns the dominant stack entry name, or "".
func (p Project) MainLanguage() string {
	best := ""
	var bestPct float64
	for _, s := range p.Stack {
		if s.Percent > bestPct {
			best, bestPct = s.Name, s.Percent
		}
	}
	return best
}

// Account is the authenticated identity as reported by the auth provider.
type Account struct {
	ID            string `json:"id"`
	Name          string `json:"name,omitempty"`
	Email         string `json:"email,omitempty"`
	AvatarURL     string `json:"avatarUrl,omitempty"`
	EmailVerified bool   `json:"emailVerified"`
	Anonymous     bool   `json:"anonymous"`
}

// Provider is one identity-provider record attached to an account.
type Provider struct {
	ProviderID string `json:"providerId"`
	UID        string `json:"uid"`
	Name       string `json:"name,omitempty"`
	Email      string `json:"email,omitempty"`
	PhotoURL   string `json:"photoUrl,omitempty"`
}

// User is the session-level identity: either a guest or an
// authenticated account optionally enriched with provider data.
type User struct {
	Guest        bool       `json:"guest"`
	Account      Account    `json:"account"`
	Providers    []Provider `json:"providers,omitempty"`
	OAuthToken   string     `json:"-"`
	SignInMethod string     `json:"signInMethod,omitempty"`
}

// GuestUser returns the anonymous session identity.
func GuestUser(account Account) User {
	return User{Guest: true, Account: account}
}

// ProfileRole describes what the profile owner does.
type ProfileRole string

const (
	ProfileRoleDeveloper ProfileRole = "Developer"
	ProfileRoleDesigner  ProfileRole = "Designer"
	ProfileRoleOther     ProfileRole = "Other"
)

// Contact is a single way of reaching the profile owner.
type Contact struct {
	Kind  string `json:"kind"` // "tel", "email", "li", "fb", "ig", "link"
	Title string `json:"title,omitempty"`
	Value string `json:"value"`
}

// Profile is the public description of a user.
type Profile struct {
	FirstName  string        `json:"firstName"`
	LastName   string        `json:"lastName"`
	Alias      string        `json:"alias,omitempty"`
	Roles      []ProfileRole `json:"roles,omitempty"`
	AvatarURL  string        `json:"avatarUrl,omitempty"`
	Title      string        `json:"title,omitempty"`
	About      string        `json:"about,omitempty"`
	Assets     []string      `json:"assets,omitempty"`
	Experience int           `json:"experience"`
	Location   string        `json:"location,omitempty"`
	Contact    []Contact     `json:"contact,omitempty"`
}

// DisplayName prefers the alias, falling back to "First Last".
func (p Profile) DisplayName() string {
	if p.Alias != "" {
		return p.Alias
	}
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// IsEmpty reports whether the mandatory profile fields are unset.
func (p Profile) IsEmpty() bool {
	return p.FirstName == "" || p.LastName == "" || p.Location == ""
}

// FormattedExperience renders years of experience the way the profile
// screen shows it.
func (p Profile) FormattedExperience() string {
	switch {
	case p.Experience <= 0:
		return "Less than 1"
	case p.Experience >= 20:
		return "20+"
	case p.Experience >= 15:
		return "15+"
	case p.Experience >= 10:
		return "10+"
	default:
		return fmt.Sprintf("%d", p.Experience)
	}
}
