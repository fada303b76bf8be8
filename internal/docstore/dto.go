package docstore

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kskor/folio/internal/domain"
)

// Stored document shapes. Kept separate from the domain entities so the
// on-disk format can evolve without touching callers.

type StackDoc struct {
	Name    string  `json:"name"`
	Percent float64 `json:"percent"`
}

type FollowerDoc struct {
	UID  string `json:"uid"`
	Name string `json:"name"`
}

type AccessRoleDoc struct {
	UID  string `json:"uid"`
	Role string `json:"role"`
}

type ProjectDoc struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Description    string          `json:"description,omitempty"`
	Stack          []StackDoc      `json:"stack,omitempty"`
	ImageURL       string          `json:"imageUrl,omitempty"`
	FollowersCount int             `json:"followersCount"`
	Followers      []FollowerDoc   `json:"followers,omitempty"`
	CreatedBy      string          `json:"createdBy"`
	CreatedByName  string          `json:"createdByName,omitempty"`
	CreatedOn      int64           `json:"createdOn"`
	Coauthors      []string        `json:"coauthors,omitempty"`
	Public         bool            `json:"public"`
	Source         string          `json:"source,omitempty"`
	Roles          []AccessRoleDoc `json:"roles,omitempty"`
}

type ContactDoc struct {
	Kind  string `json:"kind"`
	Title string `json:"title,omitempty"`
	Value string `json:"value"`
}

type ProfileDoc struct {
	FirstName  string       `json:"firstName"`
	LastName   string       `json:"lastName"`
	Alias      string       `json:"alias,omitempty"`
	Roles      []string     `json:"roles,omitempty"`
	AvatarURL  string       `json:"avatarUrl,omitempty"`
	Title      string       `json:"title,omitempty"`
	About      string       `json:"about,omitempty"`
	Assets     []string     `json:"assets,omitempty"`
	Experience int          `json:"experience"`
	Location   string       `json:"location,omitempty"`
	Contact    []ContactDoc `json:"contact,omitempty"`
}

// Validation rules. Records that fail these are rejected on write and
// skipped on read.
var (
	identPattern     = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	stackNamePattern = regexp.MustCompile(`^[a-zA-Z0-9 #+.\-]+$`)
	urlPattern       = regexp.MustCompile(`^https?://`)
)

const maxDescriptionLen = 250

func (d ProjectDoc) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: project name is required", domain.ErrInvalidRecord)
	}
	if d.CreatedBy == "" || !identPattern.MatchString(d.CreatedBy) {
		return fmt.Errorf("%w: bad creator id %q", domain.ErrInvalidRecord, d.CreatedBy)
	}
	if len(d.Description) > maxDescriptionLen {
		return fmt.Errorf("%w: description exceeds %d characters", domain.ErrInvalidRecord, maxDescriptionLen)
	}
	if d.ImageURL != "" && !urlPattern.MatchString(d.ImageURL) {
		return fmt.Errorf("%w: bad image url %q", domain.ErrInvalidRecord, d.ImageURL)
	}
	for _, s := range d.Stack {
		if !stackNamePattern.MatchString(s.Name) {
			return fmt.Errorf("%w: bad stack name %q", domain.ErrInvalidRecord, s.Name)
		}
	}
	for _, f := range d.Followers {
		if err := f.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (d FollowerDoc) Validate() error {
	if d.UID == "" || !identPattern.MatchString(d.UID) {
		return fmt.Errorf("%w: bad follower uid %q", domain.ErrInvalidRecord, d.UID)
	}
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: follower name is required", domain.ErrInvalidRecord)
	}
	return nil
}

func (d ProfileDoc) Validate() error {
	if strings.TrimSpace(d.FirstName) == "" || strings.TrimSpace(d.LastName) == "" {
		return fmt.Errorf("%w: first and last name are required", domain.ErrInvalidRecord)
	}
	if d.AvatarURL != "" && !urlPattern.MatchString(d.AvatarURL) {
		return fmt.Errorf("%w: bad avatar url %q", domain.ErrInvalidRecord, d.AvatarURL)
	}
	if len(d.About) > maxDescriptionLen {
		return fmt.Errorf("%w: about exceeds %d characters", domain.ErrInvalidRecord, maxDescriptionLen)
	}
	if d.Experience < 0 {
		return fmt.Errorf("%w: negative experience", domain.ErrInvalidRecord)
	}
	return nil
}

// === Mapping ===

func ProjectToDoc(p domain.Project) ProjectDoc {
	doc := ProjectDoc{
		ID:             p.ID,
		Name:           p.Name,
		Description:    p.Description,
		ImageURL:       p.ImageURL,
		FollowersCount: p.FollowersCount,
		CreatedBy:      p.CreatedBy,
		CreatedByName:  p.CreatedByName,
		CreatedOn:      p.CreatedOn,
		Coauthors:      p.Coauthors,
		Public:         p.Public,
		Source:         string(p.Source),
	}
	for _, s := range p.Stack {
		doc.Stack = append(doc.Stack, StackDoc{Name: s.Name, Percent: s.Percent})
	}
	for _, f := range p.Followers {
		doc.Followers = append(doc.Followers, FollowerDoc{UID: f.UID, Name: f.Name})
	}
	for _, r := range p.Roles {
		doc.Roles = append(doc.Roles, AccessRoleDoc{UID: r.UID, Role: string(r.Role)})
	}
	return doc
}

func (d ProjectDoc) ToProject() (domain.Project, error) {
	if err := d.Validate(); err != nil {
		return domain.Project{}, err
	}
	p := domain.Project{
		ID:             d.ID,
		Name:           d.Name,
		Description:    d.Description,
		ImageURL:       d.ImageURL,
		FollowersCount: d.FollowersCount,
		CreatedBy:      d.CreatedBy,
		CreatedByName:  d.CreatedByName,
		CreatedOn:      d.CreatedOn,
		Coauthors:      d.Coauthors,
		Public:         d.Public,
		Source:         domain.Source(d.Source),
	}
	for _, s := range d.Stack {
		p.Stack = append(p.Stack, domain.Stack{Name: s.Name, Percent: s.Percent})
	}
	for _, f := range d.Followers {
		p.Followers = append(p.Followers, domain.Follower{UID: f.UID, Name: f.Name})
	}
	for _, r := range d.Roles {
		p.Roles = append(p.Roles, domain.AccessRole{UID: r.UID, Role: domain.Role(r.Role)})
	}
	return p, nil
}

func ProfileToDoc(p domain.Profile) ProfileDoc {
	doc := ProfileDoc{
		FirstName:  p.FirstName,
		LastName:   p.LastName,
		Alias:      p.Alias,
		AvatarURL:  p.AvatarURL,
		Title:      p.Title,
		About:      p.About,
		Assets:     p.Assets,
		Experience: p.Experience,
		Location:   p.Location,
	}
	for _, r := range p.Roles {
		doc.Roles = append(doc.Roles, string(r))
	}
	for _, c := range p.Contact {
		doc.Contact = append(doc.Contact, ContactDoc{Kind: c.Kind, Title: c.Title, Value: c.Value})
	}
	return doc
}

func (d ProfileDoc) ToProfile() (domain.Profile, error) {
	if err := d.Validate(); err != nil {
		return domain.Profile{}, err
	}
	p := domain.Profile{
		FirstName:  d.FirstName,
		LastName:   d.LastName,
		Alias:      d.Alias,
		AvatarURL:  d.AvatarURL,
		Title:      d.Title,
		About:      d.About,
		Assets:     d.Assets,
		Experience: d.Experience,
		Location:   d.Location,
	}
	for _, r := range d.Roles {
		p.Roles = append(p.Roles, domain.ProfileRole(r))
	}
	for _, c := range d.Contact {
		p.Contact = append(p.Contact, domain.Contact{Kind: c.Kind, Title: c.Title, Value: c.Value})
	}
	return p, nil
}
