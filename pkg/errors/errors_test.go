package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneKeepsCodeAndCopiesDetails(t *testing.T) {
	base := WithDetail(ErrPeriodInvalid, "legacyCode", "E002")
	clone := Clone(base, "period closed")
	clone.Details["reason"] = "closed"

	assert.Equal(t, "PERIOD_INVALID", clone.Code)
	assert.Equal(t, "period closed", clone.Message)
	assert.Equal(t, http.StatusBadRequest, clone.Status)
	_, leaked := base.Details["reason"]
	assert.False(t, leaked)
	assert.True(t, errors.Is(clone, ErrPeriodInvalid))
}

func TestFromErrorWrapsUntypedErrors(t *testing.T) {
	err := FromError(fmt.Errorf("disk full"))
	require.NotNil(t, err)
	assert.Equal(t, ErrInternal.Code, err.Code)
	assert.Equal(t, KindInternal, err.Kind)
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("load: %w", Wrap(errors.New("io"), ErrStorage, ""))
	assert.Equal(t, KindTransient, KindOf(wrapped))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.True(t, HasCode(wrapped, "STORAGE_ERROR"))
}

func TestSubmitRejectionIsTerminalButKeepsCode(t *testing.T) {
	rejected := Wrap(errors.New("400 bad period"), ErrSubmitRejected, "")
	assert.True(t, errors.Is(rejected, ErrSubmit))
	assert.Equal(t, KindInput, KindOf(rejected))
	assert.Equal(t, http.StatusUnprocessableEntity, rejected.Status)
	assert.Equal(t, KindTransient, KindOf(Wrap(errors.New("503"), ErrSubmit, "")))
}
