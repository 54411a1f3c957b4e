package partners

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/multierr"

	"github.com/stagecrew/rentline-backend/pkg/config"
	"github.com/stagecrew/rentline-backend/pkg/db/models"
	"github.com/stagecrew/rentline-backend/pkg/enums"
	pkgerrors "github.com/stagecrew/rentline-backend/pkg/errors"
	"github.com/stagecrew/rentline-backend/pkg/logger"
)

const syncBatchSize = 50

// SyncWorker pushes pending commitments to the partner and releases the
// ones whose reservation was cancelled after fallback.
type SyncWorker struct {
	repo   *Repository
	client Client
	cfg    config.PartnerConfig
	log    *logger.Logger
}

// NewSyncWorker wires the out-of-band commitment sync loop.
func NewSyncWorker(repo *Repository, client Client, cfg config.PartnerConfig, log *logger.Logger) (*SyncWorker, error) {
	switch {
	case repo == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "partners: repository is required")
	case client == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "partners: client is required")
	case log == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "partners: logger is required")
	}
	return &SyncWorker{repo: repo, client: client, cfg: cfg, log: log}, nil
}

// Run processes batches until the context is cancelled.
func (w *SyncWorker) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.RunOnce(ctx); err != nil {
				w.log.Error(ctx, "partner sync pass failed", err)
			}
		}
	}
}

// RunOnce performs a single sync pass and returns the combined errors.
func (w *SyncWorker) RunOnce(ctx context.Context) error {
	var combined error

	pending, err := w.repo.ListPendingCommitments(ctx, syncBatchSize)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list pending commitments")
	}
	for i := range pending {
		if err := w.syncOne(ctx, &pending[i]); err != nil {
			combined = multierr.Append(combined, err)
		}
	}

	releasable, err := w.repo.ListReleasableCommitments(ctx, syncBatchSize)
	if err != nil {
		return multierr.Append(combined, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list releasable commitments"))
	}
	for i := range releasable {
		if err := w.releaseOne(ctx, &releasable[i]); err != nil {
			combined = multierr.Append(combined, err)
		}
	}
	return combined
}

func (w *SyncWorker) syncOne(ctx context.Context, row *models.ExternalCommitment) error {
	ctx = w.log.WithField(ctx, "commitment_id", row.ID.String())

	ack, err := w.commitWithRetry(ctx, CommitRequest{
		ProjectRef:  row.ReservationID.String(),
		SlotID:      row.SlotID,
		Qty:         row.Qty,
		WindowStart: row.WindowStart,
		WindowEnd:   row.WindowEnd,
	})
	if err != nil {
		row.SyncAttempts++
		message := err.Error()
		row.LastError = &message
		if row.SyncAttempts >= w.cfg.RetryMaxAttempts {
			row.Status = enums.CommitmentFailed
			w.log.Error(ctx, "commitment sync exhausted its attempts", err)
		}
		if saveErr := w.repo.SaveCommitment(ctx, row); saveErr != nil {
			return multierr.Append(err, saveErr)
		}
		return err
	}

	row.Status = enums.CommitmentSynced
	row.PartnerRef = &ack.PartnerRef
	row.LastError = nil
	if err := w.repo.SaveCommitment(ctx, row); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist synced commitment")
	}
	w.log.Info(ctx, "commitment synced to partner")
	return nil
}

func (w *SyncWorker) releaseOne(ctx context.Context, row *models.ExternalCommitment) error {
	ctx = w.log.WithField(ctx, "commitment_id", row.ID.String())

	if row.Status == enums.CommitmentSynced {
		if err := w.client.Release(ctx, row.ReservationID.String(), row.SlotID); err != nil {
			return err
		}
	}
	row.Status = enums.CommitmentReleased
	if err := w.repo.SaveCommitment(ctx, row); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist released commitment")
	}
	w.log.Info(ctx, "commitment released")
	return nil
}

func (w *SyncWorker) commitWithRetry(ctx context.Context, req CommitRequest) (*CommitResponse, error) {
	backoff := retry.NewExponential(w.cfg.RetryInitialDelay)
	backoff = retry.WithMaxRetries(uint64(perPassAttempts(w.cfg)), backoff)

	var ack *CommitResponse
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		resp, err := w.client.Commit(ctx, req)
		if err != nil {
			return retry.RetryableError(err)
		}
		ack = resp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ack, nil
}

// perPassAttempts bounds in-process retries so one stuck commitment
// cannot monopolise a pass; the durable sync_attempts counter carries
// the long-run budget.
func perPassAttempts(cfg config.PartnerConfig) int {
	if cfg.RetryMaxAttempts > 2 {
		return 2
	}
	return cfg.RetryMaxAttempts
}
