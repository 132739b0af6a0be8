package edit

import (
	"context"
	"fmt"

	"github.com/gridloom/gridloom/pkg/rows"
	"github.com/gridloom/gridloom/pkg/schema"
	"github.com/gridloom/gridloom/pkg/source"
)

// Submitter converts draft rows into server creates.
type Submitter struct {
	tableKey string
	meta     MetaFunc
	drafts   *rows.DraftStore
	mutator  source.RowMutator
	feedback source.Feedback
}

// NewSubmitter wires a submitter for one table. feedback may be nil.
func NewSubmitter(tableKey string, meta MetaFunc, drafts *rows.DraftStore, mutator source.RowMutator, feedback source.Feedback) *Submitter {
	if feedback == nil {
		feedback = source.NopFeedback{}
	}
	return &Submitter{
		tableKey: tableKey,
		meta:     meta,
		drafts:   drafts,
		mutator:  mutator,
		feedback: feedback,
	}
}

// SubmitDraftRowForEditor submits exactly one draft and returns the created
// row, for callers that need the server id immediately (an overlay editor
// uploading a file against the new row). On failure the draft is kept, with
// status error, so the user can retry; the returned row is nil.
func (s *Submitter) SubmitDraftRowForEditor(ctx context.Context, draftID string) (rows.RowData, error) {
	created, err := s.submitOne(ctx, draftID, nil)
	if err != nil {
		return nil, err
	}
	return created, nil
}

// SubmitSingleDraftRow submits one draft from the grid UI. The draft is
// removed on success and marked error on failure.
func (s *Submitter) SubmitSingleDraftRow(ctx context.Context, draftID string) error {
	_, err := s.submitOne(ctx, draftID, nil)
	return err
}

// SubmitDraftRows submits a batch. Rows are independent: a failing row is
// marked error and left in the store while the rest proceed. The aggregate
// outcome goes to the feedback collaborator.
func (s *Submitter) SubmitDraftRows(ctx context.Context, draftIDs []string) error {
	total := len(draftIDs)
	opID := s.feedback.OnStart("create-rows", total)

	createdIDs := make(map[string]string, total)
	completed, failed := 0, 0
	var firstErr error

	for _, draftID := range draftIDs {
		created, err := s.submitOne(ctx, draftID, createdIDs)
		if err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
		} else {
			completed++
			if id, ok := created[IDColumn].(string); ok {
				createdIDs[draftID] = id
			}
		}
		s.feedback.OnProgress(opID, completed, failed)
	}

	switch {
	case failed == 0:
		s.feedback.OnComplete(opID, source.OpSucceeded, fmt.Sprintf("created %d rows", completed))
	case completed == 0:
		s.feedback.OnComplete(opID, source.OpFailed, fmt.Sprintf("failed to create %d rows", failed))
		return firstErr
	default:
		s.feedback.OnComplete(opID, source.OpPartial, fmt.Sprintf("created %d/%d rows", completed, total))
		return firstErr
	}
	return nil
}

// submitOne runs the strictly ordered per-row sequence: read the latest
// metadata, build the payload with relations remapped, create, then remove
// the draft. createdIDs maps draft ids to server ids for rows already
// created earlier in the batch; nil means no batch context.
func (s *Submitter) submitOne(ctx context.Context, draftID string, createdIDs map[string]string) (rows.RowData, error) {
	draft, ok := s.drafts.Draft(s.tableKey, draftID)
	if !ok {
		return nil, ErrDraftNotFound
	}
	meta, ok := s.meta()
	if !ok {
		return nil, ErrNoMetadata
	}

	s.drafts.SetDraftRowStatus(s.tableKey, draftID, rows.DraftSubmitting, nil)

	payload, validationErrs := s.buildPayload(draft, meta, createdIDs)
	if len(validationErrs) > 0 {
		s.drafts.SetDraftRowStatus(s.tableKey, draftID, rows.DraftError, validationErrs)
		for column, msg := range validationErrs {
			return nil, source.NewValidationError(column, msg)
		}
	}

	created, err := s.mutator.Create(ctx, s.tableKey, payload)
	if err != nil {
		s.drafts.SetDraftRowStatus(s.tableKey, draftID, rows.DraftError, map[string]string{
			rows.RowErrorKey: err.Error(),
		})
		return nil, err
	}

	s.drafts.RemoveDraftRow(s.tableKey, draftID)
	return created, nil
}

// buildPayload filters the draft's values down to the table's actual field
// set (grid-only pseudo columns and server-managed columns are stripped) and
// remaps relation values.
func (s *Submitter) buildPayload(draft *rows.DraftRow, meta *schema.TableMeta, createdIDs map[string]string) (rows.RowData, map[string]string) {
	payload := make(rows.RowData, len(draft.Values))
	validationErrs := make(map[string]string)

	for column, value := range draft.Values {
		field, ok := meta.Field(column)
		if !ok || field.ServerManaged {
			continue
		}
		if field.IsRelation() {
			remapped, err := s.remapRelation(column, value, createdIDs)
			if err != "" {
				validationErrs[column] = err
				continue
			}
			value = remapped
		}
		payload[column] = value
	}
	return payload, validationErrs
}

// remapRelation resolves a relation value for submission. A value naming a
// still-unsubmitted draft's client id is a validation error, never silently
// dropped: the referenced row does not exist on the server yet. Ids of rows
// created earlier in the same batch are rewritten to their server ids.
func (s *Submitter) remapRelation(column string, value any, createdIDs map[string]string) (any, string) {
	switch tv := value.(type) {
	case nil:
		return nil, ""
	case string:
		if serverID, ok := createdIDs[tv]; ok {
			return serverID, ""
		}
		if s.drafts.HasDraft(s.tableKey, tv) {
			return nil, fmt.Sprintf("relation %q references an unsaved row; save it first", column)
		}
		return tv, ""
	case []any:
		out := make([]any, 0, len(tv))
		for _, item := range tv {
			remapped, errMsg := s.remapRelation(column, item, createdIDs)
			if errMsg != "" {
				return nil, errMsg
			}
			out = append(out, remapped)
		}
		return out, ""
	default:
		return value, ""
	}
}
