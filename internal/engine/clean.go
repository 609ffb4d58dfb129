package engine

import (
	"context"

	"dialectkit/internal/dialect"
	"dialectkit/internal/exec"
	"dialectkit/internal/schema"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// CleanResult reports the models a Clean run emptied and the ones it could not.
type CleanResult struct {
	Cleaned []string
	Failed  map[string]error
}

// Clean empties models in reverse order inside one transaction, with foreign
// key enforcement suspended. models must be in dependency order. A model
// failing to clean is recorded and the run continues.
func Clean(ctx context.Context, p *dialect.Provider, conn *exec.DBConn, models []*schema.ModelDefinition) (*CleanResult, error) {
	log := p.Logger()
	res := &CleanResult{Failed: make(map[string]error)}

	txConn, tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if tx != nil {
			tx.Rollback()
		}
	}()

	log.Debug("disabling foreign key checks")
	if err := p.DisableForeignKeysCheck(ctx, txConn, models); err != nil {
		log.Warn("disable foreign key checks", zap.Error(err))
		// A failed statement aborts the transaction on some engines.
		tx.Rollback()
		if txConn, tx, err = conn.BeginTx(ctx, nil); err != nil {
			tx = nil
			return nil, err
		}
	}

	for i := len(models) - 1; i >= 0; i-- {
		m := models[i]
		sql := p.ToTruncateStatement(m)
		err := p.Filter().Exec(ctx, txConn, func(ctx context.Context, cmd exec.Command) error {
			cmd.SetText(sql)
			_, err := cmd.ExecNonQuery(ctx)
			return err
		})
		if err != nil {
			log.Warn("clean failed, continuing", zap.String("model", m.Name), zap.Error(err))
			res.Failed[m.Name] = err
			continue
		}
		res.Cleaned = append(res.Cleaned, m.Name)
		if n := len(res.Cleaned); n%5 == 0 || i == 0 {
			log.Info("cleaned", zap.Int("done", n), zap.Int("total", len(models)))
		}
	}

	log.Debug("enabling foreign key checks")
	if err := p.EnableForeignKeysCheck(ctx, txConn, models); err != nil {
		log.Warn("enable foreign key checks", zap.Error(err))
	}

	if err := tx.Commit(); err != nil {
		return res, errors.Wrap(err, "commit clean")
	}
	tx = nil
	return res, nil
}
