package domain

// Warning kinds. They match the error taxonomy type names so the run
// manifest and the logs use one vocabulary.
const (
	WarnSchemaIncomplete   = "SCHEMA_INCOMPLETE"
	WarnCellCoercion       = "CELL_COERCION"
	WarnAggregationSkipped = "AGGREGATION_SKIPPED"
	WarnWriteFailure       = "WRITE_FAILURE"
	WarnColumnDropped      = "COLUMN_DROPPED"
	WarnExtraColumn        = "EXTRA_COLUMN"
)

// Warning is a non-fatal issue collected during a run
type Warning struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Column  string `json:"column,omitempty"`
	View    string `json:"view,omitempty"`
	Count   int    `json:"count,omitempty"`
}
