package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/staple-duck/snh/errors"
)

// requestValidate is shared by all request types; validator caches struct
// metadata so a single instance is reused.
var requestValidate = validator.New(validator.WithRequiredStructEnabled())

// OptionalID distinguishes an absent JSON field from an explicit null.
// Set is true whenever the key was present in the payload.
type OptionalID struct {
	Set   bool
	Value *string
}

// UnmarshalJSON is only invoked when the key is present
func (o *OptionalID) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("parentId must be a string or null: %w", err)
	}
	o.Value = &s
	return nil
}

// MarshalJSON writes null for both absent and explicit-null values
func (o OptionalID) MarshalJSON() ([]byte, error) {
	if o.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*o.Value)
}

// NullID returns an OptionalID that explicitly clears the parent
func NullID() OptionalID {
	return OptionalID{Set: true}
}

// SomeID returns an OptionalID that sets the parent to id
func SomeID(id string) OptionalID {
	return OptionalID{Set: true, Value: &id}
}

// CreateNodeRequest for creating a node
type CreateNodeRequest struct {
	Label    string  `json:"label" validate:"required,min=1"`
	ParentID *string `json:"parentId,omitempty" validate:"omitnil,uuid"`
}

// Validate checks the request shape
func (r *CreateNodeRequest) Validate() error {
	return validateStruct(r)
}

// UpdateNodeRequest for relabeling and/or reparenting a node. Omitted fields
// are left unchanged.
type UpdateNodeRequest struct {
	Label    *string    `json:"label,omitempty" validate:"omitnil,min=1"`
	ParentID OptionalID `json:"parentId"`
}

// Validate checks the request shape
func (r *UpdateNodeRequest) Validate() error {
	if err := validateStruct(r); err != nil {
		return err
	}
	if r.ParentID.Set && r.ParentID.Value != nil {
		if err := requestValidate.Var(*r.ParentID.Value, "uuid"); err != nil {
			return apperrors.NewValidationError(apperrors.ErrCodeInvalidFormat,
				"parentId must be a UUID", err)
		}
	}
	return nil
}

// Patch converts the request into a repository patch
func (r *UpdateNodeRequest) Patch() NodePatch {
	patch := NodePatch{Label: r.Label}
	if r.ParentID.Set {
		patch.SetParent = true
		patch.ParentID = r.ParentID.Value
	}
	return patch
}

// CloneNodeRequest for copying a subtree under a new parent
type CloneNodeRequest struct {
	NodeID         string `json:"nodeId" validate:"required,uuid"`
	TargetParentID string `json:"targetParentId" validate:"required,uuid"`
}

// Validate checks the request shape
func (r *CloneNodeRequest) Validate() error {
	return validateStruct(r)
}

func validateStruct(v interface{}) error {
	err := requestValidate.Struct(v)
	if err == nil {
		return nil
	}

	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return apperrors.NewValidationError(apperrors.ErrCodeInvalidInput, "invalid request", err)
	}

	messages := make([]string, 0, len(validationErrs))
	for _, fe := range validationErrs {
		messages = append(messages, describeFieldError(fe))
	}
	return apperrors.NewValidationError(apperrors.ErrCodeInvalidInput, strings.Join(messages, "; "), err)
}

func describeFieldError(fe validator.FieldError) string {
	field := jsonFieldName(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return field + " must not be empty"
	case "uuid":
		return field + " must be a UUID"
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

func jsonFieldName(goName string) string {
	switch goName {
	case "Label":
		return "label"
	case "ParentID":
		return "parentId"
	case "NodeID":
		return "nodeId"
	case "TargetParentID":
		return "targetParentId"
	default:
		return goName
	}
}
