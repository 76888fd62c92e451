package query

import (
	"strings"

	"gorm.io/gorm"
)

// FilterPredicate builds a parameterised WHERE clause. Conditions are
// joined with AND unless Or is called between them; values are always
// bound as arguments, never interpolated.
type FilterPredicate struct {
	predicate strings.Builder
	args      []any
	pendingOp string
}

func NewFilterPredicate() *FilterPredicate {
	return &FilterPredicate{}
}

func (fp *FilterPredicate) Open() *FilterPredicate {
	fp.join()
	fp.predicate.WriteString("(")
	return fp
}

func (fp *FilterPredicate) Close() *FilterPredicate {
	fp.predicate.WriteString(")")
	return fp
}

func (fp *FilterPredicate) Or() *FilterPredicate {
	fp.pendingOp = " OR "
	return fp
}

func (fp *FilterPredicate) Equal(column string, value any) *FilterPredicate {
	return fp.add(column+" = ?", value)
}

func (fp *FilterPredicate) NotEqual(column string, value any) *FilterPredicate {
	return fp.add(column+" <> ?", value)
}

func (fp *FilterPredicate) GreaterThan(column string, value any) *FilterPredicate {
	return fp.add(column+" > ?", value)
}

func (fp *FilterPredicate) LessThan(column string, value any) *FilterPredicate {
	return fp.add(column+" < ?", value)
}

func (fp *FilterPredicate) Between(column string, v1, v2 any) *FilterPredicate {
	return fp.add(column+" BETWEEN ? AND ?", v1, v2)
}

func (fp *FilterPredicate) In(column string, values any) *FilterPredicate {
	return fp.add(column+" IN ?", values)
}

func (fp *FilterPredicate) IsNull(column string) *FilterPredicate {
	return fp.add(column + " IS NULL")
}

func (fp *FilterPredicate) IsNotNull(column string) *FilterPredicate {
	return fp.add(column + " IS NOT NULL")
}

func (fp *FilterPredicate) Like(column, pattern string) *FilterPredicate {
	return fp.add(column+" LIKE ?", "%"+pattern+"%")
}

// Build returns the clause and its arguments.
func (fp *FilterPredicate) Build() (string, []any) {
	return fp.predicate.String(), fp.args
}

// Empty reports whether no condition has been added.
func (fp *FilterPredicate) Empty() bool {
	return fp.predicate.Len() == 0
}

// Scope applies the predicate to a gorm query.
func (fp *FilterPredicate) Scope() func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if fp.Empty() {
			return db
		}
		clause, args := fp.Build()
		return db.Where(clause, args...)
	}
}

func (fp *FilterPredicate) add(condition string, args ...any) *FilterPredicate {
	fp.join()
	fp.predicate.WriteString(condition)
	fp.args = append(fp.args, args...)
	return fp
}

func (fp *FilterPredicate) join() {
	s := fp.predicate.String()
	if s == "" || strings.HasSuffix(s, "(") {
		fp.pendingOp = ""
		return
	}
	op := fp.pendingOp
	if op == "" {
		op = " AND "
	}
	fp.predicate.WriteString(op)
	fp.pendingOp = ""
}
