// Package mapper builds the wire payloads exchanged with the backend: the
// outbound direction shapes a local row for the remote schema, the inbound
// direction mirrors a remote row back into local storage convention. Both
// directions are driven entirely by the declarative table descriptors in
// internal/schema, so adding a table never means adding a translation
// branch here.
package mapper

import (
	"context"
	"log/slog"

	"github.com/pdvsuite/pdv-sync/internal/models"
	"github.com/pdvsuite/pdv-sync/internal/schema"
	"github.com/pdvsuite/pdv-sync/pkg/encoding"
)

// Translator resolves identifiers across the local/remote boundary.
// Zero values mean "absent", never an error.
type Translator interface {
	LocalToRemote(ctx context.Context, table string, localID int64) (string, error)
	RemoteToLocal(ctx context.Context, table string, remoteID string) (int64, error)
}

// Builder produces payloads in both directions. It holds no per-row state:
// given a stable translator cache its output is deterministic.
type Builder struct {
	tr     Translator
	logger *slog.Logger
}

func NewBuilder(tr Translator, logger *slog.Logger) *Builder {
	return &Builder{tr: tr, logger: logger}
}

// Outbound converts one local row into its remote shape. Control columns
// and UI join columns are stripped, foreign keys are translated to remote
// ids, money moves from integer cents to the backend's numeric type and
// text is sanitized to UTF-8.
//
// Returns ErrNotReady when a required parent has no remote id yet; the row
// stays pending and a later pass retries it.
func (b *Builder) Outbound(ctx context.Context, table string, rec models.PendingRecord) (models.Row, error) {
	desc, err := schema.Lookup(table)
	if err != nil {
		return nil, err
	}

	skip := make(map[string]bool, len(schema.LocalControlColumns)+len(desc.LocalJoinColumns))
	for _, col := range schema.LocalControlColumns {
		skip[col] = true
	}
	for _, col := range desc.LocalJoinColumns {
		skip[col] = true
	}

	out := models.Row{}
	for column, value := range rec.Data {
		if skip[column] {
			continue
		}

		if parent, isFK := desc.ForeignKeys[column]; isFK {
			translated, err := b.translateFK(ctx, desc, column, parent, value, rec.LocalID)
			if err != nil {
				return nil, err
			}
			out[column] = translated
			continue
		}

		if desc.MoneyColumns[column] {
			// An open cash session has no closing amount yet; NULL is the
			// value, not a parse failure
			if value == nil && desc.Nullable(column) {
				out[column] = nil
				continue
			}
			cents, ok := asCents(value)
			if !ok {
				// A corrupt money value must not sink the whole batch
				b.logger.Warn("Unparseable money value, defaulting to zero",
					"table", table, "column", column, "id", rec.LocalID, "value", value)
				cents = 0
			}
			out[column] = centsToDecimal(cents)
			continue
		}

		switch val := value.(type) {
		case []byte:
			out[column] = encoding.ToUTF8(val)
		case string:
			out[column] = encoding.SanitizeText(val)
		default:
			out[column] = value
		}
	}

	return out, nil
}

// translateFK maps one local foreign key to the parent's remote id
func (b *Builder) translateFK(ctx context.Context, desc schema.Table, column, parent string, value any, localID int64) (any, error) {
	if value == nil {
		if desc.Nullable(column) {
			return nil, nil
		}
		b.logger.Warn("Required foreign key is null",
			"table", desc.Name, "column", column, "id", localID)
		return nil, ErrNotReady
	}

	parentID, ok := asInt64(value)
	if !ok {
		b.logger.Warn("Foreign key value is not a local id",
			"table", desc.Name, "column", column, "id", localID, "value", value)
		return nil, ErrNotReady
	}

	remoteID, err := b.tr.LocalToRemote(ctx, parent, parentID)
	if err != nil {
		return nil, err
	}
	if remoteID == "" {
		return nil, ErrNotReady
	}
	return remoteID, nil
}
