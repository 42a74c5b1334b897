package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/duespay/duespay/internal/types"
	"github.com/lib/pq"
	"github.com/samber/lo"
)

// uniqueViolation is the postgres error code for a unique constraint breach
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}
	return false
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// queryBuilder accumulates WHERE clauses with positional args. Column names
// are always literals from the calling repository, never caller input.
type queryBuilder struct {
	conds []string
	args  []interface{}
}

// add registers a condition whose placeholders are renumbered against the
// args accumulated so far
func (b *queryBuilder) add(cond string, args ...interface{}) {
	for _, a := range args {
		b.args = append(b.args, a)
		cond = strings.Replace(cond, "?", fmt.Sprintf("$%d", len(b.args)), 1)
	}
	b.conds = append(b.conds, cond)
}

func (b *queryBuilder) clause() string {
	if len(b.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.conds, " AND ")
}

// orderAndPage renders ORDER BY / LIMIT / OFFSET from a filter, restricting
// the sort column to the given whitelist
func orderAndPage(f types.BaseFilter, allowedSorts []string, fallback string) string {
	sort := f.GetSort()
	if !lo.Contains(allowedSorts, sort) {
		sort = fallback
	}
	order := "DESC"
	if strings.EqualFold(f.GetOrder(), "asc") {
		order = "ASC"
	}

	out := fmt.Sprintf(" ORDER BY %s %s", sort, order)
	if !f.IsUnlimited() {
		out += fmt.Sprintf(" LIMIT %d OFFSET %d", f.GetLimit(), f.GetOffset())
	}
	return out
}
