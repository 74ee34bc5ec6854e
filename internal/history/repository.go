package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/JaimeStill/patrol/pkg/pagination"
	"github.com/JaimeStill/patrol/pkg/query"
	"github.com/JaimeStill/patrol/pkg/repository"
)

type repo struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a history repository implementing the System interface.
func New(
	db *sql.DB,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "history"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Finding], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "Product", "Reason")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count findings: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	findings, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanFinding)
	if err != nil {
		return nil, fmt.Errorf("query findings: %w", err)
	}

	result := pagination.NewPageResult(findings, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Finding, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	f, err := repository.QueryOne(ctx, r.db, q, args, scanFinding)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &f, nil
}

func (r *repo) Save(ctx context.Context, cmd SaveCommand) (int, error) {
	q := `
		INSERT INTO findings(run_id, item_id, product, risk, reason, origin, model)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (run_id, item_id) DO UPDATE
		SET risk = EXCLUDED.risk, reason = EXCLUDED.reason, model = EXCLUDED.model`

	saved, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (int, error) {
		n := 0
		for _, res := range cmd.Results {
			if !Recordable(res) {
				continue
			}
			_, err := tx.ExecContext(ctx, q,
				cmd.RunID,
				res.ID,
				res.Text,
				res.Risk.String(),
				res.Detail(),
				res.Origin,
				cmd.Model,
			)
			if err != nil {
				return 0, fmt.Errorf("record item %d: %w", res.ID, err)
			}
			n++
		}
		return n, nil
	})

	if err != nil {
		return 0, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("findings recorded", "run_id", cmd.RunID, "count", saved)
	return saved, nil
}

func (r *repo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		if err := repository.ExecExpectOne(
			ctx, tx,
			"DELETE FROM findings WHERE id = $1",
			id,
		); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, nil
	})

	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("finding deleted", "id", id)
	return nil
}
