// Package query builds the KQL queries that select one transaction's request/response traces.
package query

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"tracepayload/internal/models"
)

// ErrInvalidInput is returned when a correlation key cannot produce a query.
var ErrInvalidInput = errors.New("invalid input")

// backslashRun matches the escape artifacts left behind by string templating.
// A single backslash is legal inside a verbatim literal, two or more never are.
var backslashRun = regexp.MustCompile(`\\{2,}`)

const (
	DefaultTable             = "traces"
	DefaultRoleColumn        = "cloud_RoleName"
	DefaultServiceRole       = "brierley_service"
	DefaultServiceRoleSuffix = "brierley-transaction-azfunctionapp"

	tracesBinding = "relevant_traces"
)

// Options controls the shape of the generated query.
type Options struct {
	Table             string
	RoleColumn        string
	Identities        []Identity
	IncludeDateFilter bool
}

// DefaultOptions returns the options matching the production trace layout.
func DefaultOptions() Options {
	return Options{
		Table:      DefaultTable,
		RoleColumn: DefaultRoleColumn,
		Identities: []Identity{
			{Op: OpEquals, Value: DefaultServiceRole},
			{Op: OpEndsWith, Value: DefaultServiceRoleSuffix},
		},
		IncludeDateFilter: true,
	}
}

// Builder turns correlation keys into KQL query text.
type Builder struct {
	opts Options
}

// NewBuilder creates a Builder, filling unset options from DefaultOptions.
func NewBuilder(opts Options) *Builder {
	def := DefaultOptions()
	if opts.Table == "" {
		opts.Table = def.Table
	}
	if opts.RoleColumn == "" {
		opts.RoleColumn = def.RoleColumn
	}
	if len(opts.Identities) == 0 {
		opts.Identities = def.Identities
	}
	return &Builder{opts: opts}
}

// Validate checks that key can be turned into a query.
func Validate(key models.CorrelationKey) error {
	id := strings.TrimSpace(key.TransactionID)
	if id == "" {
		return fmt.Errorf("%w: transaction id is required", ErrInvalidInput)
	}
	if strings.ContainsAny(id, "\r\n") {
		return fmt.Errorf("%w: transaction id must be a single line", ErrInvalidInput)
	}
	if backslashRun.MatchString(id) {
		return fmt.Errorf("%w: transaction id must not contain repeated backslashes", ErrInvalidInput)
	}
	if key.ReferenceDate.IsZero() {
		return fmt.Errorf("%w: transaction date is required", ErrInvalidInput)
	}
	return nil
}

// Build returns the query selecting every marker row of the transaction
// identified by key within its time window.
func (b *Builder) Build(key models.CorrelationKey) (string, error) {
	if err := Validate(key); err != nil {
		return "", err
	}

	id := strings.TrimSpace(key.TransactionID)
	window := models.NewTimeWindow(key.ReferenceDate)

	filters := []clause{
		identityClause{column: b.opts.RoleColumn, identities: b.opts.Identities},
		windowClause{window: window},
		containsClause{term: "-" + id + "-"},
	}
	if b.opts.IncludeDateFilter {
		filters = append(filters, containsClause{term: "-" + key.Day().Format(models.DateLayout)})
	}

	var sb strings.Builder
	sb.WriteString("let ")
	sb.WriteString(tracesBinding)
	sb.WriteString(" = ")
	sb.WriteString(b.opts.Table)
	sb.WriteString("\n| where ")
	for i, f := range filters {
		if i > 0 {
			sb.WriteString("\n    and ")
		}
		f.render(&sb)
	}
	sb.WriteString(";\n")
	sb.WriteString(tracesBinding)
	sb.WriteString("\n| where ")
	markerClause{markers: models.Markers()}.render(&sb)
	sb.WriteString("\n| ")
	projectClause{columns: []string{"timestamp", "message"}}.render(&sb)

	return Clean(sb.String()), nil
}

// Window returns the time window Build would use for key.
func (b *Builder) Window(key models.CorrelationKey) models.TimeWindow {
	return models.NewTimeWindow(key.ReferenceDate)
}

// Clean strips repeated backslash sequences from query text.
func Clean(q string) string {
	return backslashRun.ReplaceAllString(q, "")
}
