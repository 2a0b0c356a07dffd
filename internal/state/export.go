package state

import (
	"encoding/json"
	"fmt"

	"github.com/marcus/kanban/internal/models"
)

// ErrInvalidFile is returned when an import payload is not a board export.
var ErrInvalidFile = fmt.Errorf("invalid board file")

// Export serializes the document to indented JSON. Transient UI flags are
// stripped so a round trip compares clean.
func Export(doc *models.Document) ([]byte, error) {
	clean := *doc
	clean.ActiveID = ""
	clean.SelectedTaskID = ""

	data, err := json.MarshalIndent(&clean, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export document: %w", err)
	}
	return data, nil
}

// Import parses an exported document. The payload must carry at minimum the
// columns and tasks keys; anything else is rejected wholesale, no partial
// import is applied.
func Import(data []byte) (*models.Document, error) {
	// Probe for required top-level keys before committing to the full decode.
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	if _, ok := probe["columns"]; !ok {
		return nil, fmt.Errorf("%w: missing columns", ErrInvalidFile)
	}
	if _, ok := probe["tasks"]; !ok {
		return nil, fmt.Errorf("%w: missing tasks", ErrInvalidFile)
	}

	var doc models.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	if doc.Tasks == nil {
		doc.Tasks = make(map[string]*models.TaskView)
	}

	// Ignore ephemeral UI flags from foreign exports.
	doc.ActiveID = ""
	doc.SelectedTaskID = ""

	// Every task id referenced by a column must resolve to a task; drop
	// dangling references rather than rejecting the whole file.
	for i := range doc.Columns {
		kept := doc.Columns[i].TaskIDs[:0]
		for _, id := range doc.Columns[i].TaskIDs {
			if _, ok := doc.Tasks[id]; ok {
				kept = append(kept, id)
			}
		}
		doc.Columns[i].TaskIDs = kept
	}

	return &doc, nil
}
