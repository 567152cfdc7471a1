package query

import (
	"strings"

	"tracepayload/internal/models"
)

// clause is one whitelisted fragment of a KQL pipeline.
type clause interface {
	render(b *strings.Builder)
}

// IdentityOp is the comparison used against the service role column.
type IdentityOp string

const (
	OpEquals   IdentityOp = "=="
	OpEndsWith IdentityOp = "endswith"
)

// Identity selects one service that emits relevant traces.
type Identity struct {
	Op    IdentityOp
	Value string
}

// identityClause matches any of the configured service identities.
type identityClause struct {
	column     string
	identities []Identity
}

func (c identityClause) render(b *strings.Builder) {
	b.WriteString("(")
	for i, id := range c.identities {
		if i > 0 {
			b.WriteString(" or ")
		}
		b.WriteString(c.column)
		b.WriteString(" ")
		b.WriteString(string(id.Op))
		b.WriteString(" ")
		b.WriteString(literal(id.Value))
	}
	b.WriteString(")")
}

// windowClause bounds the timestamp column by an exclusive date range.
type windowClause struct {
	window models.TimeWindow
}

func (c windowClause) render(b *strings.Builder) {
	b.WriteString("(timestamp > todatetime(")
	b.WriteString(literal(c.window.Start.Format(models.DateLayout)))
	b.WriteString(") and timestamp < todatetime(")
	b.WriteString(literal(c.window.End.Format(models.DateLayout)))
	b.WriteString("))")
}

// containsClause requires the message to contain a term.
type containsClause struct {
	term string
}

func (c containsClause) render(b *strings.Builder) {
	b.WriteString("message has ")
	b.WriteString(literal(c.term))
}

// markerClause requires the message to carry one of the marker phrases.
type markerClause struct {
	markers []string
}

func (c markerClause) render(b *strings.Builder) {
	for i, m := range c.markers {
		if i > 0 {
			b.WriteString("\n    or ")
		}
		containsClause{term: m}.render(b)
	}
}

// projectClause keeps only the listed columns.
type projectClause struct {
	columns []string
}

func (c projectClause) render(b *strings.Builder) {
	b.WriteString("project ")
	b.WriteString(strings.Join(c.columns, ", "))
}

// literal renders s as a KQL string literal. Values holding quotes or
// backslashes use the verbatim form, where only quotes need doubling.
func literal(s string) string {
	if !strings.ContainsAny(s, `"\`) {
		return `"` + s + `"`
	}
	return `@"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
