package applications

import (
	"context"
	"strings"

	"github.com/MarcoPoloResearchLab/jobtracker/internal/history"
	"github.com/MarcoPoloResearchLab/jobtracker/internal/serviceerr"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultPageSize is the number of applications returned per list page.
const DefaultPageSize = 10

const (
	orderAsc  = "asc"
	orderDesc = "desc"
	likeQuery = "(LOWER(company_name) LIKE ? ESCAPE '\\' OR LOWER(job_title) LIKE ? ESCAPE '\\')"
)

var sortColumns = map[string]string{
	"companyName": "company_name",
	"jobTitle":    "job_title",
	"status":      "status",
	"date":        "date",
}

// ListQuery selects one page of an owner's applications.
type ListQuery struct {
	Sort  string
	Order string
	Page  int
	Query string
}

// ListResult holds one page plus the total number of matches.
type ListResult struct {
	Applications []history.Application `json:"applications"`
	Count        int64                 `json:"count"`
}

// List returns the owner's applications filtered by a case-insensitive search on
// company name or job title, sorted and paginated.
func (s *Service) List(ctx context.Context, ownerID string, query ListQuery) (ListResult, error) {
	if s.db == nil {
		s.logError(opList, reasonMissingDB, errMissingDatabase)
		return ListResult{}, serviceerr.New(opList, reasonMissingDB, errMissingDatabase)
	}
	column, descending, err := resolveOrdering(query.Sort, query.Order)
	if err != nil {
		return ListResult{}, serviceerr.New(opList, reasonInvalid, err)
	}
	page := query.Page
	if page < 1 {
		page = 1
	}

	filtered := func() *gorm.DB {
		scoped := s.db.WithContext(ctx).Model(&history.Application{}).Where(queryOwner, ownerID)
		if term := strings.TrimSpace(query.Query); term != "" {
			pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
			scoped = scoped.Where(likeQuery, pattern, pattern)
		}
		return scoped
	}

	var count int64
	if err := filtered().Count(&count).Error; err != nil {
		return ListResult{}, s.listFailure(ctx, ownerID, err)
	}

	applications := make([]history.Application, 0, s.pageSize)
	err = filtered().
		Order(clause.OrderByColumn{Column: clause.Column{Name: column}, Desc: descending}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "created_at"}, Desc: descending}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}}).
		Offset((page - 1) * s.pageSize).
		Limit(s.pageSize).
		Find(&applications).Error
	if err != nil {
		return ListResult{}, s.listFailure(ctx, ownerID, err)
	}

	return ListResult{Applications: applications, Count: count}, nil
}

func (s *Service) listFailure(ctx context.Context, ownerID string, err error) error {
	if ctx.Err() != nil {
		return serviceerr.New(opList, reasonQuery, ctx.Err())
	}
	s.logError(opList, reasonQuery, err, zap.String(fieldOwnerID, ownerID))
	return serviceerr.New(opList, reasonQuery, err)
}

func resolveOrdering(sort, order string) (string, bool, error) {
	sortKey := strings.TrimSpace(sort)
	if sortKey == "" {
		sortKey = "date"
	}
	column, ok := sortColumns[sortKey]
	if !ok {
		return "", false, history.Invalidf("unknown sort field %q", sortKey)
	}
	switch strings.ToLower(strings.TrimSpace(order)) {
	case "", orderDesc:
		return column, true, nil
	case orderAsc:
		return column, false, nil
	default:
		return "", false, history.Invalidf("unknown sort order %q", order)
	}
}

func escapeLike(term string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(term)
}
