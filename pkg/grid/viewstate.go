package grid

// SortDirection orders a sorted column.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// Sort is the active sort column and direction.
type Sort struct {
	Column    string
	Direction SortDirection
}

// Filter is one active column filter.
type Filter struct {
	Column   string
	Operator string
	Value    any
}

// Selection is a rectangular cell selection.
type Selection struct {
	StartCol, StartRow int
	EndCol, EndRow     int
}

// ViewState is the ephemeral per-table UI state: page position, sort,
// filters, column widths, selection, and open panel flags. It is owned by
// the grid instance, mutated synchronously between renders, and reset
// whenever the active table key changes.
type ViewState struct {
	TableKey     string
	PageIndex    int
	Sort         *Sort
	Filters      []Filter
	ColumnWidths map[string]int
	Selection    []Selection
	OpenPanels   map[string]bool
}

// NewViewState creates fresh view state for a table.
func NewViewState(tableKey string) *ViewState {
	return &ViewState{
		TableKey:     tableKey,
		ColumnWidths: make(map[string]int),
		OpenPanels:   make(map[string]bool),
	}
}

// SetTable switches the active table, resetting all view state when the key
// actually changes.
func (v *ViewState) SetTable(tableKey string) {
	if v.TableKey == tableKey {
		return
	}
	*v = *NewViewState(tableKey)
}

// SetColumnWidth records a resize. Applied synchronously; visible on the
// next render.
func (v *ViewState) SetColumnWidth(column string, width int) {
	if width < 0 {
		width = 0
	}
	v.ColumnWidths[column] = width
}

// SetSort replaces the active sort. A nil sort clears it.
func (v *ViewState) SetSort(sort *Sort) {
	v.Sort = sort
}

// SetFilters replaces the active filters.
func (v *ViewState) SetFilters(filters []Filter) {
	v.Filters = filters
}

// TogglePanel flips an open/closed UI panel flag and returns the new value.
func (v *ViewState) TogglePanel(name string) bool {
	v.OpenPanels[name] = !v.OpenPanels[name]
	return v.OpenPanels[name]
}
