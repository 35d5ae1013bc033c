package schema

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/aretw0/kiln/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply(t *testing.T) {
	s := Schema{
		"TARGET":            Enum("x86_64", "aarch64"),
		"DISK_SIZE_SECTORS": Int(),
		"SMP":               Bool(),
	}
	vars := map[string]any{
		"TARGET":            "x86_64",
		"DISK_SIZE_SECTORS": "0x5000",
		"SMP":               "true",
		"GREETING":          "hi",
	}

	out, err := Apply(s, vars)
	require.NoError(t, err)
	assert.Equal(t, int64(0x5000), out["DISK_SIZE_SECTORS"])
	assert.Equal(t, true, out["SMP"])
	assert.Equal(t, "hi", out["GREETING"], "undeclared variables pass through")
	assert.Equal(t, "true", vars["SMP"], "input is not modified")
}

func TestApply_Empty(t *testing.T) {
	out, err := Apply(nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, out)
}

func TestApply_Errors(t *testing.T) {
	s := Schema{
		"DISK_SIZE_SECTORS": Int(),
		"SMP":               Bool(),
		"TARGET":            String(),
	}
	_, err := Apply(s, map[string]any{"DISK_SIZE_SECTORS": "big", "TARGET": nil})
	require.Error(t, err)

	errs := ValidationErrors(err)
	require.Len(t, errs, 3)
	assert.Contains(t, errs[0].Error(), `variable "DISK_SIZE_SECTORS"`)
	assert.Contains(t, err.Error(), "3 variable errors")

	assert.True(t, errors.Is(err, domain.ErrKeyType))
	assert.True(t, errors.Is(err, domain.ErrMissingKey))

	var verr *ValidationError
	require.True(t, errors.As(errs[1], &verr))
	assert.Equal(t, "SMP", verr.Key)
	assert.Equal(t, "required", verr.Reason)
}

func TestSchemaJSON(t *testing.T) {
	s := Schema{"SMP": Bool(), "FEATURES": Slice(String())}
	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"SMP":"bool","FEATURES":"[string]"}`, string(data))

	var back Schema
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, "[string]", back["FEATURES"].Name())

	assert.Error(t, json.Unmarshal([]byte(`{"X":"uint"}`), &back))
}
