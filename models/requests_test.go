package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/staple-duck/snh/errors"
)

const validUUID = "550e8400-e29b-41d4-a716-446655440000"

func TestUpdateNodeRequest_ParentTriState(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantSet   bool
		wantValue *string
	}{
		{name: "absent", body: `{"label":"x"}`, wantSet: false},
		{name: "explicit null", body: `{"parentId":null}`, wantSet: true},
		{name: "value", body: `{"parentId":"` + validUUID + `"}`, wantSet: true, wantValue: StringPtr(validUUID)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req UpdateNodeRequest
			require.NoError(t, json.Unmarshal([]byte(tt.body), &req))

			assert.Equal(t, tt.wantSet, req.ParentID.Set)
			assert.Equal(t, tt.wantValue, req.ParentID.Value)

			patch := req.Patch()
			assert.Equal(t, tt.wantSet, patch.SetParent)
			assert.Equal(t, tt.wantValue, patch.ParentID)
		})
	}
}

func TestUpdateNodeRequest_RejectsNonStringParent(t *testing.T) {
	var req UpdateNodeRequest
	err := json.Unmarshal([]byte(`{"parentId":42}`), &req)
	assert.Error(t, err)
}

func TestCreateNodeRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     CreateNodeRequest
		wantErr bool
	}{
		{name: "root", req: CreateNodeRequest{Label: "Root"}},
		{name: "child", req: CreateNodeRequest{Label: "Child", ParentID: StringPtr(validUUID)}},
		{name: "empty parent", req: CreateNodeRequest{Label: "Root", ParentID: StringPtr("")}, wantErr: true},
		{name: "whitespace label", req: CreateNodeRequest{Label: " "}},
		{name: "empty label", req: CreateNodeRequest{Label: ""}, wantErr: true},
		{name: "malformed parent", req: CreateNodeRequest{Label: "x", ParentID: StringPtr("not-a-uuid")}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestUpdateNodeRequest_Validate(t *testing.T) {
	empty := ""
	tests := []struct {
		name    string
		req     UpdateNodeRequest
		wantErr bool
	}{
		{name: "nothing", req: UpdateNodeRequest{}},
		{name: "label", req: UpdateNodeRequest{Label: StringPtr("Renamed")}},
		{name: "empty label", req: UpdateNodeRequest{Label: &empty}, wantErr: true},
		{name: "null parent", req: UpdateNodeRequest{ParentID: NullID()}},
		{name: "uuid parent", req: UpdateNodeRequest{ParentID: SomeID(validUUID)}},
		{name: "bad parent", req: UpdateNodeRequest{ParentID: SomeID("nope")}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestCloneNodeRequest_Validate(t *testing.T) {
	assert.NoError(t, (&CloneNodeRequest{NodeID: validUUID, TargetParentID: validUUID}).Validate())

	err := (&CloneNodeRequest{NodeID: validUUID}).Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "targetParentId is required")
}

func TestNodePatch_Apply(t *testing.T) {
	node := &Node{ID: "a", Label: "old", ParentID: StringPtr("p")}

	NodePatch{Label: StringPtr("new")}.Apply(node, node.UpdatedAt)
	assert.Equal(t, "new", node.Label)
	assert.Equal(t, "p", node.ParentOrEmpty())

	NodePatch{SetParent: true}.Apply(node, node.UpdatedAt)
	assert.True(t, node.IsRoot())
}

func TestNode_CopyIsDeep(t *testing.T) {
	node := &Node{ID: "a", ParentID: StringPtr("p")}
	cp := node.Copy()
	*cp.ParentID = "q"
	assert.Equal(t, "p", *node.ParentID)
}
