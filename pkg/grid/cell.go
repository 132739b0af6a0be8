// Package grid maps the combined row sequence onto renderable cells and
// exposes the callback contract a virtualized spreadsheet widget consumes.
//
// The adapter is a pure function of current store/cache state: it holds no
// per-cell memo, so a relation descriptor arriving after first paint turns
// the affected cells into bubble cells on the very next render pass.
package grid

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/gridloom/gridloom/pkg/schema"
)

// CellKind is the renderable kind of one cell.
type CellKind string

const (
	CellText    CellKind = "text"
	CellNumber  CellKind = "number"
	CellBoolean CellKind = "boolean"
	// CellBubble lists related-record labels for relation columns.
	CellBubble CellKind = "bubble"
	// CellLoading marks a server row index whose chunk is not fetched yet.
	CellLoading CellKind = "loading"
	// CellCustom is produced by an injected resolver (geometry etc.).
	CellCustom CellKind = "custom"
)

// Cell is the renderable description of one coordinate.
type Cell struct {
	Kind    CellKind
	Value   any
	Display string

	// AllowOverlay reports whether the widget may open an overlay editor.
	AllowOverlay bool

	// Disabled applies the faded/not-allowed style, e.g. server-managed
	// timestamp columns on unsaved rows.
	Disabled bool

	// Bubble holds related-record labels for bubble cells.
	Bubble []string

	// Custom carries the resolver's payload for custom cells.
	Custom any
}

// CellResolver produces custom cell kinds for columns whose metadata marks
// them as such. It takes precedence over the built-in mapping when it
// returns true.
type CellResolver interface {
	Resolve(field schema.Field, value any) (Cell, bool)
}

// scalarCell maps a non-relation field value to a cell.
func scalarCell(field schema.Field, value any) Cell {
	switch field.Type {
	case schema.FieldNumber:
		return Cell{Kind: CellNumber, Value: value, Display: displayString(value), AllowOverlay: true}
	case schema.FieldBoolean:
		return Cell{Kind: CellBoolean, Value: value, Display: displayString(value), AllowOverlay: true}
	case schema.FieldJSON:
		return Cell{Kind: CellText, Value: value, Display: displayJSON(value), AllowOverlay: true}
	default:
		return Cell{Kind: CellText, Value: value, Display: displayString(value), AllowOverlay: true}
	}
}

func displayString(value any) string {
	switch tv := value.(type) {
	case nil:
		return ""
	case string:
		return tv
	case float64:
		return strconv.FormatFloat(tv, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(tv)
	default:
		return fmt.Sprintf("%v", tv)
	}
}

func displayJSON(value any) string {
	if value == nil {
		return ""
	}
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	return string(b)
}
