package assembler

import (
	"fmt"
	"time"

	"tracepayload/internal/models"
)

// Diagnostic reports a non-fatal problem with a single input row.
type Diagnostic struct {
	Row       int       `json:"row"`
	Kind      string    `json:"kind"`
	Record    string    `json:"record"`
	Timestamp time.Time `json:"timestamp"`
	Detail    string    `json:"detail"`
	err       error
}

func newDiagnostic(row int, r models.RawLogRow, kind models.RecordKind, cause error, detail string) Diagnostic {
	return Diagnostic{
		Row:       row,
		Kind:      diagnosticKind(cause),
		Record:    kind.String(),
		Timestamp: r.Timestamp.UTC(),
		Detail:    detail,
		err:       cause,
	}
}

func diagnosticKind(cause error) string {
	switch cause {
	case ErrMalformedFragment:
		return "MalformedFragment"
	case ErrOutOfOrderPairing:
		return "OutOfOrderPairing"
	default:
		return "Unknown"
	}
}

func (d Diagnostic) Error() string {
	return fmt.Sprintf("row %d (%s): %v: %s", d.Row, d.Record, d.err, d.Detail)
}

// Unwrap exposes the sentinel error so callers can use errors.Is.
func (d Diagnostic) Unwrap() error {
	return d.err
}
