package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZerologAdapterWritesComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewZerolog(&buf, zerolog.DebugLevel)

	log.Info("Pipeline", "split computed", map[string]interface{}{"images": 20})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "Pipeline", entry["component"])
	assert.Equal(t, "split computed", entry["message"])
	assert.EqualValues(t, 20, entry["images"])
}

func TestZerologAdapterError(t *testing.T) {
	var buf bytes.Buffer
	log := NewZerolog(&buf, zerolog.InfoLevel)

	log.Error("ArtifactStore", errors.New("checksum mismatch"), nil)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "checksum mismatch", entry["error"])
}

func TestZerologAdapterRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewZerolog(&buf, zerolog.WarnLevel)

	log.Debug("Pipeline", "hidden", nil)
	log.Info("Pipeline", "hidden", nil)
	assert.Zero(t, buf.Len())

	log.Warning("Pipeline", "shown", nil)
	assert.Contains(t, buf.String(), "shown")
}

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&buf, "INFO", "json")
	require.NoError(t, err)
	log.Info("Config", "loaded", nil)
	assert.True(t, strings.HasPrefix(buf.String(), "{"))

	_, err = New(&buf, "loud", "json")
	assert.Error(t, err)

	_, err = New(&buf, "info", "xml")
	assert.Error(t, err)
}
