package log

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	logconfig "github.com/weisyn/subproof/internal/config/log"
	"github.com/stretchr/testify/require"
)

// newFileLogger 创建只写文件的测试日志器
func newFileLogger(t *testing.T, level string) (*Logger, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "logs", "subproof.log")
	cfg := logconfig.NewFromOptions(&logconfig.LogOptions{
		Level:      level,
		ToConsole:  false,
		FilePath:   path,
		MaxSize:    1,
		MaxBackups: 1,
		MaxAge:     1,
	})

	logger, err := New(cfg)
	require.NoError(t, err)
	concrete, ok := logger.(*Logger)
	require.True(t, ok)
	return concrete, path
}

// readEntries 读取 JSON 行日志
func readEntries(t *testing.T, path string) []map[string]interface{} {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var entries []map[string]interface{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		entries = append(entries, entry)
	}
	require.NoError(t, scanner.Err())
	return entries
}

// ============================================================================
//                              文件输出测试
// ============================================================================

func TestNew_WritesJSONToRotatingFile(t *testing.T) {
	logger, path := newFileLogger(t, InfoLevel)

	logger.Info("subscription created")
	logger.Infof("proof generated in %dms", 42)
	require.NoError(t, logger.Sync())

	entries := readEntries(t, path)
	require.Len(t, entries, 2)
	require.Equal(t, "subscription created", entries[0]["message"])
	require.Equal(t, "info", entries[0]["level"])
	require.Equal(t, "proof generated in 42ms", entries[1]["message"])
}

func TestNew_FiltersBelowConfiguredLevel(t *testing.T) {
	logger, path := newFileLogger(t, WarnLevel)

	logger.Debug("debug line")
	logger.Info("info line")
	logger.Warn("warn line")
	logger.Errorf("error %s", "line")
	require.NoError(t, logger.Sync())

	entries := readEntries(t, path)
	require.Len(t, entries, 2)
	require.Equal(t, "warn line", entries[0]["message"])
	require.Equal(t, "error line", entries[1]["message"])
}

// ============================================================================
//                              结构化字段测试
// ============================================================================

func TestWith_AddsStructuredFields(t *testing.T) {
	logger, path := newFileLogger(t, DebugLevel)

	NewModuleLogger(logger, "subproof").With("shard", 3, "dangling").Info("structured")
	require.NoError(t, logger.Sync())

	entries := readEntries(t, path)
	require.Len(t, entries, 1)
	require.Equal(t, "subproof", entries[0]["module"])
	require.EqualValues(t, 3, entries[0]["shard"])
	_, hasDangling := entries[0]["dangling"]
	require.False(t, hasDangling)
}

func TestNewModuleLogger_NilBase(t *testing.T) {
	require.Nil(t, NewModuleLogger(nil, "subproof"))
}

// ============================================================================
//                              全局日志器测试
// ============================================================================

func TestSetLogger_IgnoresNil(t *testing.T) {
	before := GetLogger()
	SetLogger(nil)
	require.Equal(t, before, GetLogger())
}

func TestGlobalWith_ReturnsChildLogger(t *testing.T) {
	prev := GetLogger()
	defer SetLogger(prev)

	SetLogger(NewNop())
	child := With("k", "v")
	require.NotNil(t, child)
	require.NotNil(t, child.GetZapLogger())
}
