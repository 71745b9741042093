package tournament

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/chrisvdg/tourneyfilter/criteria"
)

// DefaultPageSize is the number of tournaments per page when none is configured
const DefaultPageSize = 20

// Query represents criteria translated into filter, order and page terms
type Query struct {
	Category string
	Location string
	Status   Status
	// From and To bound the start date, both inclusive; zero is unbounded
	From   time.Time
	To     time.Time
	SortBy string
	Desc   bool
	Offset int
	Limit  int
}

// NewQuery derives a query from c. Criteria are validated on construction,
// so every field is known to parse.
func NewQuery(c criteria.Criteria, pageSize int) Query {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	page, _ := strconv.Atoi(c.Get(criteria.FieldPage))
	if page < 1 {
		page = 1
	}
	q := Query{
		Category: c.Get(criteria.FieldCategory),
		Location: c.Get(criteria.FieldLocation),
		Status:   Status(c.Get(criteria.FieldStatus)),
		SortBy:   c.Get(criteria.FieldSortBy),
		Desc:     c.Get(criteria.FieldSortDir) == "desc",
		Offset:   (page - 1) * pageSize,
		Limit:    pageSize,
	}
	if v := c.Get(criteria.FieldDateFrom); v != "" {
		q.From, _ = time.Parse(criteria.DateLayout, v)
	}
	if v := c.Get(criteria.FieldDateTo); v != "" {
		q.To, _ = time.Parse(criteria.DateLayout, v)
	}
	return q
}

// Matches reports whether t passes the query filters
func (q Query) Matches(t Tournament) bool {
	if q.Category != "" && !strings.EqualFold(q.Category, t.Category) {
		return false
	}
	if q.Location != "" && !strings.Contains(strings.ToLower(t.Location), strings.ToLower(q.Location)) {
		return false
	}
	if q.Status != "" && q.Status != t.Status {
		return false
	}
	start := t.StartDate.UTC()
	if !q.From.IsZero() && start.Before(q.From) {
		return false
	}
	if !q.To.IsZero() && !start.Before(q.To.AddDate(0, 0, 1)) {
		return false
	}
	return true
}

// Sort orders ts in place by the query sort field, ties broken by ID
func (q Query) Sort(ts []Tournament) {
	sort.SliceStable(ts, func(i, j int) bool {
		a, b := ts[i], ts[j]
		if q.Desc {
			a, b = b, a
		}
		var c int
		switch q.SortBy {
		case "name":
			c = strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		case "location":
			c = strings.Compare(strings.ToLower(a.Location), strings.ToLower(b.Location))
		case "category":
			c = strings.Compare(a.Category, b.Category)
		default:
			c = a.StartDate.Compare(b.StartDate)
		}
		if c == 0 {
			return a.ID < b.ID
		}
		return c < 0
	})
}

// Page returns the slice of ts selected by the query offset and limit
func (q Query) Page(ts []Tournament) []Tournament {
	if q.Offset >= len(ts) {
		return []Tournament{}
	}
	end := q.Offset + q.Limit
	if end > len(ts) {
		end = len(ts)
	}
	return ts[q.Offset:end]
}
