package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/staple-duck/snh/database"
	apperrors "github.com/staple-duck/snh/errors"
	"github.com/staple-duck/snh/models"
)

const (
	opCreate  = "create"
	opGet     = "get"
	opUpdate  = "update"
	opDelete  = "delete"
	opClone   = "clone"
	opFindAll = "find_all"
)

// TreeService maintains the node forest. Each mutation runs as one store
// transaction, so its existence and cycle checks see the same state the
// write commits against.
type TreeService struct {
	store   database.NodeStore
	logger  Logger
	metrics MetricsService
	reads   singleflight.Group
	now     func() time.Time
}

// NewTreeService creates a hierarchy service over store. A nil logger or
// metrics disables that concern.
func NewTreeService(store database.NodeStore, logger Logger, metrics MetricsService) *TreeService {
	if logger == nil {
		logger = NopLogger{}
	}
	if metrics == nil {
		metrics = NoOpMetrics{}
	}
	return &TreeService{
		store:   store,
		logger:  logger.With(String("component", "hierarchy")),
		metrics: metrics,
		now:     time.Now,
	}
}

func (s *TreeService) observe(op string, start time.Time, err error) {
	s.metrics.ObserveOperation(op, err, time.Since(start))
	if err == nil {
		return
	}
	switch apperrors.TypeOf(err) {
	case apperrors.ErrTypeStorage, apperrors.ErrTypeInternal:
		s.logger.Error("Operation failed", err, String("operation", op))
	default:
		s.logger.Warn("Operation rejected",
			String("operation", op),
			String("error_type", string(apperrors.TypeOf(err))),
			String("reason", err.Error()))
	}
}

func validateLabel(label string) error {
	if label == "" {
		return apperrors.NewValidationError(apperrors.ErrCodeMissingField, "label must not be empty", nil)
	}
	return nil
}

func errParentNotFound(id string) error {
	return apperrors.NewParentNotFoundError(apperrors.ErrCodeParentNotFound,
		fmt.Sprintf("Parent node %s not found", id), nil)
}

// requireParent fails with parent_not_found unless id exists in repo
func requireParent(ctx context.Context, repo database.NodeRepository, id string) error {
	exists, err := repo.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return errParentNotFound(id)
	}
	return nil
}

// Create adds a node under parentID, or as a root when parentID is nil
func (s *TreeService) Create(ctx context.Context, label string, parentID *string) (node *models.Node, err error) {
	defer func(start time.Time) { s.observe(opCreate, start, err) }(time.Now())

	if err := validateLabel(label); err != nil {
		return nil, err
	}

	err = s.store.WithTx(ctx, func(repo database.NodeRepository) error {
		if parentID != nil {
			if err := requireParent(ctx, repo, *parentID); err != nil {
				return err
			}
		}

		var err error
		node, err = repo.Insert(ctx, &models.Node{
			ID:       database.NewNodeID(),
			Label:    label,
			ParentID: parentID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Node created", String("node_id", node.ID), String("parent_id", node.ParentOrEmpty()))
	return node, nil
}

// Get returns a single node
func (s *TreeService) Get(ctx context.Context, id string) (node *models.Node, err error) {
	defer func(start time.Time) { s.observe(opGet, start, err) }(time.Now())
	return s.store.Get(ctx, id)
}

// Update relabels and/or reparents a node. A patch that sets a nil parent
// turns the node into a root.
func (s *TreeService) Update(ctx context.Context, id string, patch models.NodePatch) (node *models.Node, err error) {
	defer func(start time.Time) { s.observe(opUpdate, start, err) }(time.Now())

	err = s.store.WithTx(ctx, func(repo database.NodeRepository) error {
		current, err := repo.Get(ctx, id)
		if err != nil {
			return err
		}

		if patch.Label != nil {
			if err := validateLabel(*patch.Label); err != nil {
				return err
			}
		}

		if patch.SetParent && patch.ParentID != nil {
			newParent := *patch.ParentID
			if newParent == id {
				return apperrors.NewSelfParentError(apperrors.ErrCodeSelfParent, "Node cannot be its own parent")
			}
			if err := requireParent(ctx, repo, newParent); err != nil {
				return err
			}
			cyclic, err := NewReachability(repo).IsAncestorOf(ctx, id, newParent)
			if err != nil {
				return err
			}
			if cyclic {
				return apperrors.NewCircularReferenceError(apperrors.ErrCodeCircularReference,
					"Cannot create circular reference")
			}
		}

		if patch.IsEmpty() {
			node = current
			return nil
		}
		node, err = repo.Update(ctx, id, patch)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Node updated",
		String("node_id", node.ID),
		String("parent_id", node.ParentOrEmpty()),
		Bool("reparented", patch.SetParent))
	return node, nil
}

// Delete removes a node together with its whole subtree
func (s *TreeService) Delete(ctx context.Context, id string) (resp *models.DeleteResponse, err error) {
	defer func(start time.Time) { s.observe(opDelete, start, err) }(time.Now())

	var descendants []string
	err = s.store.WithTx(ctx, func(repo database.NodeRepository) error {
		var err error
		descendants, err = NewReachability(repo).DescendantsOf(ctx, id)
		if err != nil {
			return err
		}

		// children before parents
		ids := make([]string, 0, len(descendants)+1)
		for i := len(descendants) - 1; i >= 0; i-- {
			ids = append(ids, descendants[i])
		}
		ids = append(ids, id)

		if batch, ok := repo.(database.BatchWriter); ok {
			removed, err := batch.DeleteBatch(ctx, ids)
			if err != nil {
				return err
			}
			if removed != len(ids) {
				return apperrors.NewStorageError(apperrors.ErrCodeTransactionFailed,
					fmt.Sprintf("cascade delete removed %d of %d nodes", removed, len(ids)), nil)
			}
			return nil
		}

		for _, nodeID := range ids {
			if err := repo.Delete(ctx, nodeID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	count := len(descendants) + 1
	s.metrics.AddNodesDeleted(count)
	s.logger.Info("Subtree deleted", String("node_id", id), Int("deleted_count", count))

	return &models.DeleteResponse{
		ID:           id,
		DeletedCount: count,
		Message:      fmt.Sprintf("Successfully deleted node %s and %d descendant(s)", id, len(descendants)),
	}, nil
}

// Clone copies the subtree rooted at sourceID under targetParentID. Every
// copy gets a new id; the source is left untouched.
func (s *TreeService) Clone(ctx context.Context, sourceID, targetParentID string) (resp *models.CloneResponse, err error) {
	defer func(start time.Time) { s.observe(opClone, start, err) }(time.Now())

	var copies []*models.Node
	err = s.store.WithTx(ctx, func(repo database.NodeRepository) error {
		source, err := NewReachability(repo).Subtree(ctx, sourceID)
		if err != nil {
			return err
		}
		if err := requireParent(ctx, repo, targetParentID); err != nil {
			return err
		}

		copies = planClone(source, targetParentID, s.now())

		if batch, ok := repo.(database.BatchWriter); ok {
			return batch.InsertBatch(ctx, copies)
		}
		for _, n := range copies {
			if _, err := repo.Insert(ctx, n); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.AddNodesCloned(len(copies))
	s.logger.Info("Subtree cloned",
		String("source_id", sourceID),
		String("target_parent_id", targetParentID),
		String("root_id", copies[0].ID),
		Int("count", len(copies)))

	return &models.CloneResponse{
		Message: "Successfully cloned tree",
		Count:   len(copies),
		RootID:  copies[0].ID,
	}, nil
}

// planClone maps every source id to a fresh one before any row is built,
// so each copy's parent is already decided. subtree must list parents
// before children with the subtree root first. Creation times are spaced
// a microsecond apart to keep sibling order stable in listings.
func planClone(subtree []*models.Node, targetParentID string, now time.Time) []*models.Node {
	idMap := make(map[string]string, len(subtree))
	for _, n := range subtree {
		idMap[n.ID] = database.NewNodeID()
	}

	copies := make([]*models.Node, 0, len(subtree))
	for i, n := range subtree {
		parent := targetParentID
		if i > 0 {
			parent = idMap[n.ParentOrEmpty()]
		}
		created := now.Add(time.Duration(i) * time.Microsecond)
		copies = append(copies, &models.Node{
			ID:        idMap[n.ID],
			Label:     n.Label,
			ParentID:  models.StringPtr(parent),
			CreatedAt: created,
			UpdatedAt: created,
		})
	}
	return copies
}

// FindAll returns the whole forest. Concurrent calls share one store scan,
// so the scan is detached from any single caller's cancellation.
func (s *TreeService) FindAll(ctx context.Context) (forest []*models.TreeNode, err error) {
	defer func(start time.Time) { s.observe(opFindAll, start, err) }(time.Now())

	v, err, _ := s.reads.Do("forest", func() (interface{}, error) {
		nodes, err := s.store.ListAll(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		s.metrics.SetForestSize(len(nodes))
		return BuildForest(nodes), nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]*models.TreeNode), nil
}
