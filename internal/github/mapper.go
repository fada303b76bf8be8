package github

import (
	"strconv"
	"time"

	"github.com/kskor/folio/internal/domain"
)

// MapRepo converts one repository record to a domain project owned by uid.
func MapRepo(dto RepoDTO, uid, ownerName string) domain.Project {
	return domain.Project{
		ID:            strconv.FormatInt(dto.ID, 10),
		Name:          dto.Name,
		Description:   dto.Description,
		ImageURL:      dto.Owner.AvatarURL,
		CreatedBy:     uid,
		CreatedByName: ownerName,
		CreatedOn:     parseTimestamp(dto.CreatedAt),
		Public:        !dto.Private,
		Source:        domain.SourceGitHub,
	}
}

// MapRepos converts a page of repository records.
func MapRepos(dtos []RepoDTO, uid, ownerName string) []domain.Project {
	projects := make([]domain.Project, 0, len(dtos))
	for _, dto := range dtos {
		projects = append(projects, MapRepo(dto, uid, ownerName))
	}
	return projects
}

// MapLanguages converts a language breakdown to stack slices with percent
// shares of the total line count.
func MapLanguages(langs LanguagesDTO) []domain.Stack {
	var total int64
	for _, lines := range langs {
		total += lines
	}
	if total == 0 {
		return nil
	}
	stack := make([]domain.Stack, 0, len(langs))
	for name, lines := range langs {
		stack = append(stack, domain.Stack{
			Name:    name,
			Percent: float64(lines) * 100 / float64(total),
		})
	}
	return stack
}

func parseTimestamp(value string) int64 {
	if value == "" {
		return 0
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return 0
	}
	return t.Unix()
}
