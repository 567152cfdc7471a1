// Package assembler reconstructs transaction payloads from classified trace rows.
package assembler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/valyala/fastjson"

	"tracepayload/internal/models"
)

var (
	// ErrMalformedFragment marks a classified row whose embedded JSON could not be parsed.
	ErrMalformedFragment = errors.New("malformed fragment")
	// ErrOutOfOrderPairing marks a response row that arrived before any request of its stage.
	ErrOutOfOrderPairing = errors.New("out of order pairing")
)

// PairingOrder selects the row order used to pair requests with responses.
type PairingOrder string

const (
	// ArrivalOrder pairs rows in the order the trace store returned them.
	ArrivalOrder PairingOrder = "arrival"
	// TimestampOrder stable-sorts rows by timestamp before pairing.
	TimestampOrder PairingOrder = "timestamp"
)

// OrphanPolicy decides what happens to a response with no request to attach to.
type OrphanPolicy string

const (
	OrphanSkip OrphanPolicy = "skip"
	OrphanFail OrphanPolicy = "fail"
)

// Options configures an Assembler.
type Options struct {
	Order   PairingOrder
	Orphans OrphanPolicy
}

// ParsePairingOrder maps a configuration value to a PairingOrder.
func ParsePairingOrder(s string) (PairingOrder, error) {
	switch PairingOrder(strings.ToLower(strings.TrimSpace(s))) {
	case "", ArrivalOrder:
		return ArrivalOrder, nil
	case TimestampOrder:
		return TimestampOrder, nil
	default:
		return "", fmt.Errorf("unknown pairing order: %q", s)
	}
}

// ParseOrphanPolicy maps a configuration value to an OrphanPolicy.
func ParseOrphanPolicy(s string) (OrphanPolicy, error) {
	switch OrphanPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", OrphanSkip:
		return OrphanSkip, nil
	case OrphanFail:
		return OrphanFail, nil
	default:
		return "", fmt.Errorf("unknown orphan policy: %q", s)
	}
}

// Assembler merges request and response rows into an AssembledPayload.
// It holds no per-call state and is safe for concurrent use.
type Assembler struct {
	opts   Options
	parser fastjson.ParserPool
	logger zerolog.Logger
}

// New creates an Assembler. Zero-valued options mean arrival order and skipping orphans.
func New(opts Options, logger zerolog.Logger) *Assembler {
	if opts.Order == "" {
		opts.Order = ArrivalOrder
	}
	if opts.Orphans == "" {
		opts.Orphans = OrphanSkip
	}
	return &Assembler{
		opts:   opts,
		logger: logger.With().Str("component", "assembler").Logger(),
	}
}

// Classify returns the kind of the first marker phrase found in message,
// checking markers in priority order.
func Classify(message string) (models.RecordKind, bool) {
	for _, k := range models.Kinds {
		if strings.Contains(message, k.Marker()) {
			return k, true
		}
	}
	return 0, false
}

// Assemble classifies rows, extracts their fragments and pairs them per stage.
// Per-row problems are returned as diagnostics; an error is only returned when
// the orphan policy is OrphanFail and an orphaned response is met.
func (a *Assembler) Assemble(rows []models.RawLogRow) (*models.AssembledPayload, []Diagnostic, error) {
	payload := models.NewAssembledPayload()
	var diags []Diagnostic

	if len(rows) == 0 {
		return payload, diags, nil
	}

	st := newStages()
	order := a.rowOrder(rows)

	for _, idx := range order {
		row := rows[idx]
		payload.TimestampUTC = row.Timestamp.UTC()

		kind, ok := Classify(row.Message)
		if !ok {
			continue
		}
		stage := kind.Stage()

		if kind.Role() == models.RoleResponse && st.empty(stage) {
			d := newDiagnostic(idx, row, kind, ErrOutOfOrderPairing, "response arrived before any request of its stage")
			diags = append(diags, d)
			if a.opts.Orphans == OrphanFail {
				return nil, diags, d
			}
			a.logger.Warn().Int("row", idx).Str("kind", kind.String()).Msg("Skipping orphaned response")
			continue
		}

		frag, err := a.fragment(row.Message)
		if err != nil {
			d := newDiagnostic(idx, row, kind, ErrMalformedFragment, err.Error())
			a.logger.Warn().Int("row", idx).Str("kind", kind.String()).Err(err).Msg("Malformed log fragment")
			diags = append(diags, d)
		}

		switch kind.Role() {
		case models.RoleRequest:
			st.append(stage, models.StagePair{Request: frag})
		case models.RoleResponse:
			if frag != nil {
				st.patchLast(stage, frag)
			}
		}
	}

	payload.Transaction = st.pairs(models.StageTransaction)
	payload.EvaluateDiscounts = st.pairs(models.StageDiscounts)

	a.logger.Debug().
		Int("rows", len(rows)).
		Int("transaction_pairs", len(payload.Transaction)).
		Int("discount_pairs", len(payload.EvaluateDiscounts)).
		Int("diagnostics", len(diags)).
		Msg("Payload assembled")

	return payload, diags, nil
}

// rowOrder returns the indexes of rows in pairing order.
func (a *Assembler) rowOrder(rows []models.RawLogRow) []int {
	order := make([]int, len(rows))
	for i := range order {
		order[i] = i
	}
	if a.opts.Order == TimestampOrder {
		sort.SliceStable(order, func(i, j int) bool {
			return rows[order[i]].Timestamp.Before(rows[order[j]].Timestamp)
		})
	}
	return order
}

// fragment extracts the JSON object starting at the first '{' of message.
// The result is compacted and HTML-escaped the way encoding/json emits raw
// messages, so it round-trips unchanged.
func (a *Assembler) fragment(message string) (json.RawMessage, error) {
	start := strings.IndexByte(message, '{')
	if start < 0 {
		return nil, errors.New("no JSON object in message")
	}
	raw := message[start:]

	p := a.parser.Get()
	defer a.parser.Put(p)

	v, err := p.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid JSON at offset %d: %w", start, err)
	}
	if t := v.Type(); t != fastjson.TypeObject {
		return nil, fmt.Errorf("fragment is %s, not an object", t)
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, []byte(raw)); err != nil {
		return nil, fmt.Errorf("failed to compact fragment: %w", err)
	}
	var out bytes.Buffer
	json.HTMLEscape(&out, compact.Bytes())
	return json.RawMessage(out.Bytes()), nil
}
