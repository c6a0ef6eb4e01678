package services

import (
	"context"

	"github.com/staple-duck/snh/models"
)

// HierarchyService is the operation set consumed by the HTTP layer and CLI.
// Every error it returns is an *errors.AppError.
type HierarchyService interface {
	Create(ctx context.Context, label string, parentID *string) (*models.Node, error)
	Get(ctx context.Context, id string) (*models.Node, error)
	Update(ctx context.Context, id string, patch models.NodePatch) (*models.Node, error)
	Delete(ctx context.Context, id string) (*models.DeleteResponse, error)
	Clone(ctx context.Context, sourceID, targetParentID string) (*models.CloneResponse, error)
	FindAll(ctx context.Context) ([]*models.TreeNode, error)
}
