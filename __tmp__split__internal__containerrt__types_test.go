package containerrt

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOutcomeIsOK(t *testing.T) {
	assert.True(t, OK(true).IsOK())
	assert.False(t, Timeout[bool]().IsOK())
	assert.False(t, Failed[bool](ReasonUnknown, "", nil).IsOK())
	assert.False(t, Lost[bool](errors.New("boom")).IsOK())
}

func TestOutcomeValue(t *testing.T) {
	o := OK(VolumeInfo{Name: "cai-data"})
	assert.Equal(t, "cai-data", o.Value.Name)
}


