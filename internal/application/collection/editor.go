package collection

import (
	"context"
	"fmt"

	"github.com/jyl/universe/internal/domain"
)

// editSession is the scratch buffer of the one row being edited in a list.
type editSession struct {
	rowID string
	draft domain.Fields
}

func (e *editSession) view() EditView {
	return EditView{RowID: e.rowID, Draft: e.draft.Clone()}
}

// StartEditing copies the editable columns of a row into a scratch buffer.
// Any edit already open in the list is discarded without being saved.
func (m *Manager) StartEditing(ctx context.Context, id string) (edit EditView, err error) {
	err = m.mutate(ctx, func(st *listState) error {
		i, err := m.indexOf(st, id)
		if err != nil {
			return err
		}
		row := st.rows[i]
		st.editing = &editSession{rowID: row.ID, draft: m.coll.EditableFields(row.Fields)}
		edit = st.editing.view()
		return nil
	})
	return edit, err
}

// UpdateDraft patches the scratch buffer. The list itself is not touched.
func (m *Manager) UpdateDraft(ctx context.Context, patch domain.Fields) (edit EditView, err error) {
	err = m.mutate(ctx, func(st *listState) error {
		if st.editing == nil {
			return domain.ErrNotEditing
		}
		for name := range patch {
			if f, ok := m.coll.Field(name); ok && !f.Editable {
				return fmt.Errorf("%w: %s is not editable", domain.ErrUnknownField, name)
			}
		}
		normalized, err := m.coll.NormalizePatch(patch)
		if err != nil {
			return err
		}
		st.editing.draft = st.editing.draft.Merge(normalized)
		edit = st.editing.view()
		return nil
	})
	return edit, err
}

// CancelEditing discards the scratch buffer. Cancelling with no open edit
// is a no-op.
func (m *Manager) CancelEditing(ctx context.Context) error {
	return m.mutate(ctx, func(st *listState) error {
		st.editing = nil
		return nil
	})
}

// SaveEdit writes the scratch buffer into the row and dispatches one update
// of the changed columns. A blank title is silently rejected: applied is
// false, nothing is sent and the row stays in editing.
func (m *Manager) SaveEdit(ctx context.Context) (row domain.Row, applied bool, err error) {
	err = m.mutate(ctx, func(st *listState) error {
		if st.editing == nil {
			return domain.ErrNotEditing
		}
		if title, ok := st.editing.draft[m.coll.TitleField]; ok && domain.IsBlank(title) {
			return nil
		}

		i, err := m.indexOf(st, st.editing.rowID)
		if err != nil {
			st.editing = nil
			return err
		}

		row, applied = m.applyPatch(st, i, st.editing.draft), true
		st.editing = nil
		return nil
	})
	return row, applied, err
}
