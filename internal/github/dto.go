package github

// Wire-shaped records returned by the REST API. Kept separate from domain
// values; mapping happens in mapper.go.

// RepoDTO is one repository record.
type RepoDTO struct {
	ID              int64    `json:"id"`
	Name            string   `json:"name"`
	FullName        string   `json:"full_name"`
	Description     string   `json:"description"`
	HTMLURL         string   `json:"html_url"`
	Fork            bool     `json:"fork"`
	Private         bool     `json:"private"`
	StargazersCount int      `json:"stargazers_count"`
	Language        string   `json:"language"`
	Topics          []string `json:"topics"`
	CreatedAt       string   `json:"created_at"`
	PushedAt        string   `json:"pushed_at"`
	Owner           struct {
		Login     string `json:"login"`
		AvatarURL string `json:"avatar_url"`
	} `json:"owner"`
}

// UserDTO is the authenticated user record.
type UserDTO struct {
	ID          int64  `json:"id"`
	Login       string `json:"login"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	AvatarURL   string `json:"avatar_url"`
	PublicRepos int    `json:"public_repos"`
	OwnedRepos  int    `json:"total_private_repos"`
}

// SearchDTO is the envelope of a repository search response.
type SearchDTO struct {
	TotalCount        int       `json:"total_count"`
	IncompleteResults bool      `json:"incomplete_results"`
	Items             []RepoDTO `json:"items"`
}

// LanguagesDTO maps language name to line count for one repository.
type LanguagesDTO map[string]int64
