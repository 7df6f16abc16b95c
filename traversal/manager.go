package traversal

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nodefeed/nodefeed/client"
	"github.com/nodefeed/nodefeed/constants"
	"github.com/nodefeed/nodefeed/pkg/sqlgen"
	"github.com/nodefeed/nodefeed/types"
	"github.com/nodefeed/nodefeed/utils"
	"github.com/nodefeed/nodefeed/utils/logger"
)

// Manager is the traversal engine for one configured source. Calls are
// serialized per instance by contract (the host never overlaps calls on
// the same manager); only the batch-size hint may arrive from another
// thread.
type Manager struct {
	config  *Config
	dialect constants.DialectType

	admin client.Client
	user  client.Client

	fields   []types.Field
	selector *Selector
	filter   *MatchFilter
	dedup    *DeleteDedup

	batchSize atomic.Int32
}

// NewManager connects both identities and assembles the engine. The
// dialect must be configured here since it decides the SQL driver;
// autodetection is only possible over injected clients.
func NewManager(ctx context.Context, config *Config) (*Manager, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate config: %s", err)
	}
	if config.Admin == nil {
		return nil, fmt.Errorf("admin connection config is required")
	}
	if config.Dialect == "" {
		return nil, fmt.Errorf("dialect must be configured when the manager owns the connections")
	}

	// Both identities connect concurrently; either failure aborts.
	dialect := constants.DialectType(config.Dialect)
	var admin, user client.Client
	connectors := []func() error{func() error {
		connected, err := client.Connect(ctx, dialect, config.Admin)
		if err != nil {
			return fmt.Errorf("failed to connect administrative identity: %s", err)
		}
		admin = connected
		return nil
	}}
	if config.Impersonated != nil {
		connectors = append(connectors, func() error {
			connected, err := client.Connect(ctx, dialect, config.Impersonated)
			if err != nil {
				return fmt.Errorf("failed to connect impersonated identity: %s", err)
			}
			user = connected
			return nil
		})
	}
	closeConnected := func() {
		if admin != nil {
			admin.Close()
		}
		if user != nil {
			user.Close()
		}
	}
	if err := utils.ErrExec(connectors...); err != nil {
		closeConnected()
		return nil, err
	}
	if user == nil {
		user = admin
	}
	manager, err := NewManagerWithClients(ctx, config, admin, user)
	if err != nil {
		closeConnected()
		return nil, err
	}
	return manager, nil
}

// NewManagerWithClients assembles the engine over caller-owned clients.
// With no configured dialect the server is probed: KDual answers on every
// server, dual only on Oracle.
func NewManagerWithClients(ctx context.Context, config *Config, admin, user client.Client) (*Manager, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate config: %s", err)
	}

	dialect := constants.DialectType(config.Dialect)
	if config.Dialect == "" {
		detected, err := detectDialect(ctx, admin)
		if err != nil {
			return nil, err
		}
		dialect = detected
		logger.Infof("autodetected dialect: %s", dialect)
	}

	includedRoots, err := utils.SplitIDList(config.IncludedLocationNodes)
	if err != nil {
		return nil, err
	}
	excludedRoots, err := utils.SplitIDList(config.ExcludedLocationNodes)
	if err != nil {
		return nil, err
	}
	excludedTypes, err := utils.SplitIDList(config.ExcludedNodeTypes)
	if err != nil {
		return nil, err
	}
	volumeTypes, err := utils.SplitIDList(config.ExcludedVolumeTypes)
	if err != nil {
		return nil, err
	}

	if len(volumeTypes) > 0 {
		volumeRoots, err := resolveVolumeNodes(ctx, admin, volumeTypes)
		if err != nil {
			return nil, err
		}
		excludedRoots = append(excludedRoots, volumeRoots...)
	}

	var sqlFilters []string
	if len(excludedTypes) > 0 {
		sqlFilters = append(sqlFilters, sqlgen.ExcludedTypesPredicate(excludedTypes))
	}
	if config.ExtraWhere != "" {
		sqlFilters = append(sqlFilters, fmt.Sprintf("(%s)", config.ExtraWhere))
	}
	needHierarchy := len(includedRoots) > 0 || len(excludedRoots) > 0
	if config.UseAncestorTable {
		if len(includedRoots) > 0 {
			sqlFilters = append(sqlFilters, sqlgen.DescendantPredicate(includedRoots))
		}
		if len(excludedRoots) > 0 {
			sqlFilters = append(sqlFilters, sqlgen.NotDescendantPredicate(excludedRoots))
		}
	}

	fields := config.fields()
	dedup := NewDeleteDedup()
	genealogist := NewGenealogist(admin, includedRoots, excludedRoots,
		config.GenealogistMinCache, config.GenealogistMaxCache)

	manager := &Manager{
		config:   config,
		dialect:  dialect,
		admin:    admin,
		user:     user,
		fields:   fields,
		dedup:    dedup,
		selector: NewSelector(dialect, admin, config.TrackDeletes, config.IndexedDeletes, dedup),
		filter: NewMatchFilter(dialect, admin, user, fields, sqlFilters,
			config.UseAncestorTable, needHierarchy, genealogist),
	}
	manager.batchSize.Store(int32(config.BatchSize))
	return manager, nil
}

func detectDialect(ctx context.Context, admin client.Client) (constants.DialectType, error) {
	// Generic connectivity errors surface on the KDual probe first.
	query, view, columns := sqlgen.ProbeQuery(false)
	if _, err := admin.Execute(ctx, query, view, columns); err != nil {
		return "", fmt.Errorf("failed to probe server: %w", err)
	}
	query, view, columns = sqlgen.ProbeQuery(true)
	if _, err := admin.Execute(ctx, query, view, columns); err != nil {
		return constants.MSSQL, nil
	}
	return constants.Oracle, nil
}

func resolveVolumeNodes(ctx context.Context, admin client.Client, volumeTypes []int64) ([]int64, error) {
	query, view, columns := sqlgen.VolumeNodesQuery(volumeTypes)
	rows, err := admin.Execute(ctx, query, view, columns)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve excluded volume nodes: %w", err)
	}
	volumes := make([]int64, 0, rows.Size())
	for row := 0; row < rows.Size(); row++ {
		id, err := rows.ToInt(row, "DataID")
		if err != nil {
			return nil, fmt.Errorf("failed to read volume node id: %s", err)
		}
		volumes = append(volumes, id)
	}
	return volumes, nil
}

// SetBatchHint adjusts the candidate window size: 0 resets the default,
// values past the ceiling are clamped, negative hints are a caller bug.
func (m *Manager) SetBatchHint(hint int) error {
	switch {
	case hint < 0:
		return &types.InvalidArgumentError{Argument: "batch size hint", Value: hint}
	case hint == 0:
		m.batchSize.Store(constants.DefaultBatchSize)
	case hint > constants.MaxBatchSize:
		m.batchSize.Store(constants.MaxBatchSize)
	default:
		m.batchSize.Store(int32(hint))
	}
	return nil
}

// StartTraversal begins a fresh traversal from the configured start date,
// or from the beginning of the change order.
func (m *Manager) StartTraversal(ctx context.Context) (*types.Batch, error) {
	cursor, err := m.forgeInitialCursor(ctx)
	if err != nil {
		return nil, err
	}
	logger.Infof("starting traversal at checkpoint %q", cursor.String())
	return m.traverse(ctx, cursor)
}

// ResumeTraversal continues from a previously returned checkpoint string.
func (m *Manager) ResumeTraversal(ctx context.Context, checkpoint string) (*types.Batch, error) {
	cursor, err := types.ParseCursor(checkpoint)
	if err != nil {
		return nil, err
	}
	// Old checkpoints predate delete tracking; seed it now so historical
	// deletes are not replayed.
	if m.config.TrackDeletes && !cursor.TracksDeletes() {
		m.seedDeleteCheckpoint(ctx, cursor)
		cursor = cursor.Clone()
	}
	logger.Debugf("resuming traversal at checkpoint %q", checkpoint)
	return m.traverse(ctx, cursor)
}

func (m *Manager) forgeInitialCursor(ctx context.Context) (*types.Cursor, error) {
	cursor := types.NewCursor()
	if !m.config.startDate.IsZero() {
		cursor.SetInsertCheckpoint(m.config.startDate, 0)
	}
	if m.config.TrackDeletes {
		m.seedDeleteCheckpoint(ctx, cursor)
	}
	return cursor.Clone(), nil
}

// seedDeleteCheckpoint anchors the delete sub-cursor at the newest audit
// entry. A failed lookup falls back to the current time with no event id:
// traversal proceeds, historical deletes stay unreplayed, and the failure
// is logged rather than fatal.
func (m *Manager) seedDeleteCheckpoint(ctx context.Context, cursor *types.Cursor) {
	auditTime, eventID, err := m.selector.LatestDeleteCheckpoint(ctx)
	if err != nil {
		logger.Warnf("failed to read latest audit entry, seeding delete checkpoint from clock: %s", err)
		auditTime, eventID = time.Now(), types.NoDeleteEvent
	}
	if err := cursor.SetDeleteCheckpoint(auditTime, eventID); err != nil {
		logger.Warnf("failed to seed delete checkpoint: %s", err)
	}
}

// traverse is the time-boxed scan loop. Each iteration fetches one bounded
// window of candidates and deletes; sparse windows grow the batch size and
// advance the cursor past the dead zone instead of waiting for a match.
func (m *Manager) traverse(ctx context.Context, cursor *types.Cursor) (*types.Batch, error) {
	deadline := time.Now().Add(time.Duration(m.config.TimeBudgetSeconds) * time.Second)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	batchSize := int(m.batchSize.Load())

	for {
		checkpointBefore := cursor.String()

		candidates, err := m.selector.Candidates(ctx, cursor, batchSize)
		if err != nil {
			return nil, err
		}
		deletes, err := m.selector.Deletes(ctx, cursor, batchSize)
		if err != nil {
			return nil, err
		}

		var documents []types.Document
		if len(candidates) > 0 {
			if err := ValidateCandidateOrder(cursor, candidates[0], m.config.FuzzDays); err != nil {
				return nil, err
			}
			high := candidates[len(candidates)-1]
			candidateIDs := make([]int64, len(candidates))
			for i, candidate := range candidates {
				candidateIDs[i] = candidate.ID
			}
			// Checkpoint the end of the examined window before filtering:
			// rows filtered out now must never be revisited.
			cursor.SetInsertCheckpoint(high.ModifyDate, high.ID)
			if documents, err = m.filter.Results(ctx, candidateIDs, high.ModifyDate); err != nil {
				return nil, err
			}
		}

		freshDeletes := m.advanceDeletes(cursor, deletes)

		if len(documents) > 0 || len(freshDeletes) > 0 {
			if len(deletes) > 0 {
				// Everything the audit query returned up to the new
				// checkpoint has now been delivered at least once.
				delivered := make([]int64, len(deletes))
				for i, event := range deletes {
					delivered[i] = event.NodeID
				}
				m.dedup.Publish(delivered)
			}
			logger.Infof("batch ready: %d document(s), %d delete(s), checkpoint %q",
				len(documents), len(freshDeletes), cursor.String())
			return &types.Batch{
				Outcome:    types.BatchReady,
				Documents:  documents,
				DeletedIDs: freshDeletes,
				NextCursor: cursor.String(),
			}, nil
		}

		if cursor.String() == checkpointBefore {
			// Nothing produced and nothing to move past: the source has no
			// usable rows beyond the checkpoint. Growing the window cannot
			// change that.
			if !cursor.HasChanged() {
				return types.NothingNew(cursor), nil
			}
			// The cursor moved past a dead zone earlier in this call; hand
			// the advanced checkpoint back for an immediate retry.
			return &types.Batch{Outcome: types.BatchEmptyAdvance, NextCursor: cursor.String()}, nil
		}

		// Sparse region: widen the window and keep scanning while the
		// time budget lasts. The cursor already sits at the window's end.
		batchSize = batchSize * constants.BatchSizeGrowthFactor
		if batchSize > constants.MaxBatchSize {
			batchSize = constants.MaxBatchSize
		}
		if time.Now().After(deadline) || ctx.Err() != nil {
			logger.Debugf("scan budget exhausted at checkpoint %q", cursor.String())
			return &types.Batch{Outcome: types.BatchEmptyAdvance, NextCursor: cursor.String()}, nil
		}
	}
}

// advanceDeletes moves the delete sub-cursor past the fetched events and
// returns the node ids not already delivered in the prior batch. The
// checkpoint only moves forward; a pure replay leaves it untouched so a
// quiet source still reports "nothing new".
func (m *Manager) advanceDeletes(cursor *types.Cursor, deletes []DeleteEvent) []int64 {
	if len(deletes) == 0 {
		return nil
	}

	last := deletes[len(deletes)-1]
	lastTime := last.Time.Truncate(time.Second)
	advances := lastTime.After(cursor.DeleteTime) ||
		(lastTime.Equal(cursor.DeleteTime) && last.EventID > cursor.DeleteEventID)
	if advances {
		if err := cursor.SetDeleteCheckpoint(last.Time, last.EventID); err != nil {
			logger.Warnf("failed to advance delete checkpoint: %s", err)
		}
	}

	fresh := make([]int64, 0, len(deletes))
	for _, event := range deletes {
		if m.config.IndexedDeletes || !m.dedup.Contains(event.NodeID) {
			fresh = append(fresh, event.NodeID)
		}
	}
	if len(fresh) == 0 {
		return nil
	}
	return fresh
}

// Close releases both identities.
func (m *Manager) Close() error {
	closers := []func() error{
		utils.ErrExecFormat("failed to close admin client: %s", m.admin.Close),
	}
	if m.user != m.admin {
		closers = append(closers, utils.ErrExecFormat("failed to close impersonated client: %s", m.user.Close))
	}
	return utils.ErrExecSequential(closers...)
}
