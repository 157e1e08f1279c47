package mapper

import (
	"context"
	"fmt"

	"github.com/pdvsuite/pdv-sync/internal/models"
	"github.com/pdvsuite/pdv-sync/internal/schema"
)

// Inbound converts one remote row into its local shape: backend control
// columns are stripped, foreign keys are translated back to local ids and
// money returns to integer cents. Null values are dropped unless the
// column is flagged nullable in the descriptor; writing an accidental
// NULL through would corrupt the local row.
//
// The resulting payload always carries sync_status = synced and the source
// row's remote id: by construction it originates from the system of
// record.
//
// Returns ErrNotReady when a required parent has not arrived locally yet.
func (b *Builder) Inbound(ctx context.Context, table string, remote models.Row) (models.Row, error) {
	desc, err := schema.Lookup(table)
	if err != nil {
		return nil, err
	}

	remoteID, err := RemoteID(remote)
	if err != nil {
		return nil, fmt.Errorf("inbound row for %s: %w", table, err)
	}

	skip := make(map[string]bool, len(schema.RemoteControlColumns))
	for _, col := range schema.RemoteControlColumns {
		skip[col] = true
	}

	out := models.Row{}
	for column, value := range remote {
		if skip[column] {
			continue
		}

		if parent, isFK := desc.ForeignKeys[column]; isFK {
			if value == nil {
				if desc.Nullable(column) {
					out[column] = nil
					continue
				}
				b.logger.Warn("Remote row carries null required foreign key",
					"table", table, "column", column, "remote_id", remoteID)
				return nil, ErrNotReady
			}

			rid, ok := remoteIDString(value)
			if !ok {
				b.logger.Warn("Remote foreign key is not a usable id",
					"table", table, "column", column, "remote_id", remoteID, "value", value)
				return nil, ErrNotReady
			}

			localID, err := b.tr.RemoteToLocal(ctx, parent, rid)
			if err != nil {
				return nil, err
			}
			if localID == 0 {
				return nil, ErrNotReady
			}
			out[column] = localID
			continue
		}

		if desc.MoneyColumns[column] {
			if value == nil && desc.Nullable(column) {
				out[column] = nil
				continue
			}
			cents, ok := decimalToCents(value)
			if !ok {
				b.logger.Warn("Unparseable remote money value, defaulting to zero",
					"table", table, "column", column, "remote_id", remoteID, "value", value)
				cents = 0
			}
			out[column] = cents
			continue
		}

		if value == nil && !desc.Nullable(column) {
			continue
		}
		out[column] = value
	}

	out[schema.ColumnSyncStatus] = models.StatusSynced
	out[schema.ColumnRemoteID] = remoteID

	return out, nil
}
