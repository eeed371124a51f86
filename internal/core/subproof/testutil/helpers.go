// Package testutil 提供订阅证明模块测试的辅助工具
//
// ⚠️ 本包不依赖 subproof 包本身，避免循环依赖。
package testutil

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/weisyn/subproof/internal/core/infrastructure/clock"
	"github.com/weisyn/subproof/pkg/interfaces/infrastructure/log"
)

// MockLogger 统一的日志Mock实现
//
// 所有方法都是空实现，不记录日志。
type MockLogger struct{}

func (m *MockLogger) Debug(msg string)                          {}
func (m *MockLogger) Debugf(format string, args ...interface{}) {}
func (m *MockLogger) Info(msg string)                           {}
func (m *MockLogger) Infof(format string, args ...interface{})  {}
func (m *MockLogger) Warn(msg string)                           {}
func (m *MockLogger) Warnf(format string, args ...interface{})  {}
func (m *MockLogger) Error(msg string)                          {}
func (m *MockLogger) Errorf(format string, args ...interface{}) {}
func (m *MockLogger) Fatal(msg string)                          {}
func (m *MockLogger) Fatalf(format string, args ...interface{}) {}
func (m *MockLogger) With(args ...interface{}) log.Logger       { return m }
func (m *MockLogger) Sync() error                               { return nil }
func (m *MockLogger) GetZapLogger() *zap.Logger                 { return zap.NewNop() }

// RecordingLogger 记录格式串的日志Mock，用于断言日志中不含秘密
type RecordingLogger struct {
	MockLogger
	mu   sync.Mutex
	logs []string
}

func (m *RecordingLogger) record(level, msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, level+": "+msg)
}

func (m *RecordingLogger) Debug(msg string) { m.record("DEBUG", msg) }
func (m *RecordingLogger) Info(msg string)  { m.record("INFO", msg) }
func (m *RecordingLogger) Warn(msg string)  { m.record("WARN", msg) }
func (m *RecordingLogger) Error(msg string) { m.record("ERROR", msg) }

func (m *RecordingLogger) Debugf(format string, args ...interface{}) {
	m.record("DEBUG", fmt.Sprintf(format, args...))
}

func (m *RecordingLogger) Infof(format string, args ...interface{}) {
	m.record("INFO", fmt.Sprintf(format, args...))
}

func (m *RecordingLogger) Warnf(format string, args ...interface{}) {
	m.record("WARN", fmt.Sprintf(format, args...))
}

func (m *RecordingLogger) Errorf(format string, args ...interface{}) {
	m.record("ERROR", fmt.Sprintf(format, args...))
}

func (m *RecordingLogger) With(args ...interface{}) log.Logger { return m }

// Logs 返回已记录日志的副本
func (m *RecordingLogger) Logs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.logs...)
}

// Contains 任一日志包含 needle 时返回 true
func (m *RecordingLogger) Contains(needle string) bool {
	for _, l := range m.Logs() {
		if strings.Contains(l, needle) {
			return true
		}
	}
	return false
}

// NewTestLogger 创建测试用的Logger
func NewTestLogger() log.Logger {
	return &MockLogger{}
}

// NewRecordingLogger 创建记录型Logger
func NewRecordingLogger() *RecordingLogger {
	return &RecordingLogger{}
}

// NewTestTime 固定的测试起始时间（秒级）
func NewTestTime() time.Time {
	return time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
}

// NewTestClock 创建以 NewTestTime 为起点的 MockClock
func NewTestClock() *clock.MockClock {
	return clock.NewMockClock(NewTestTime())
}

var _ log.Logger = (*MockLogger)(nil)
var _ log.Logger = (*RecordingLogger)(nil)
