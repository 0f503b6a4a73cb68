package apperror

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorsIs(t *testing.T) {
	driverErr := errors.New("disk I/O error")

	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{name: "not found", err: NotFound("page", "page_x"), target: ErrNotFound, wantMatch: true},
		{name: "referential", err: &ReferentialError{UserID: 1}, target: ErrReferential, wantMatch: true},
		{name: "referential keeps driver error", err: &ReferentialError{UserID: 1, Err: driverErr}, target: driverErr, wantMatch: true},
		{name: "storage", err: Storage("count", driverErr), target: ErrStorage, wantMatch: true},
		{name: "storage keeps driver error", err: Storage("count", driverErr), target: driverErr, wantMatch: true},
		{name: "classification", err: Unclassifiable("empty"), target: ErrClassification, wantMatch: true},
		{name: "validation", err: Invalid("driver", "unknown"), target: ErrValidation, wantMatch: true},
		{name: "not found is not storage", err: NotFound("page", "x"), target: ErrStorage, wantMatch: false},
		{name: "storage is not referential", err: Storage("insert", driverErr), target: ErrReferential, wantMatch: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMatch, errors.Is(tt.err, tt.target))
		})
	}
}

func TestStorageNil(t *testing.T) {
	assert.NoError(t, Storage("noop", nil))
}

func TestCodes(t *testing.T) {
	type coder interface{ Code() string }

	tests := []struct {
		err  error
		want string
	}{
		{NotFound("page", "x"), "NOT_FOUND"},
		{&ReferentialError{UserID: 3}, "REFERENTIAL"},
		{Storage("op", errors.New("x")), "STORAGE"},
		{Unclassifiable("x"), "CLASSIFICATION"},
		{Invalid("f", "m"), "VALIDATION"},
	}
	for _, tt := range tests {
		c, ok := tt.err.(coder)
		if assert.True(t, ok, "%T has no Code()", tt.err) {
			assert.Equal(t, tt.want, c.Code())
		}
	}
}

func TestMessages(t *testing.T) {
	assert.Equal(t, "page not found with id page_x", NotFound("page", "page_x").Error())
	assert.Equal(t, "user 7 is not registered", (&ReferentialError{UserID: 7}).Error())
	assert.Equal(t, "storage: insert interaction: boom", Storage("insert interaction", errors.New("boom")).Error())
	assert.Equal(t, "driver: unknown", Invalid("driver", "unknown").Error())
	assert.Equal(t, "bare", Invalid("", "bare").Error())
}
