package clock

import (
	"sync"
	"time"

	"github.com/beevik/ntp"
	clockconfig "github.com/weisyn/subproof/internal/config/clock"
	infraClock "github.com/weisyn/subproof/pkg/interfaces/infrastructure/clock"
)

// queryFn 返回本地时钟相对服务器的偏移
type queryFn func(server string) (time.Duration, error)

func ntpQuery(server string) (time.Duration, error) {
	resp, err := ntp.Query(server)
	if err != nil {
		return 0, err
	}
	if err := resp.Validate(); err != nil {
		return 0, err
	}
	return resp.ClockOffset, nil
}

// NTPClock 通过NTP周期性校正偏移的时钟实现
//
// 订阅到期判断依赖时间，验证方和证明方时钟偏差过大时会误判证明过期，
// 因此生产环境可选用 NTP 校正后的时间。
type NTPClock struct {
	mu                 sync.Mutex
	server             string
	offset             time.Duration
	lastSync           time.Time
	lastAttempt        time.Time
	syncInterval       time.Duration
	backoff            time.Duration
	backoffInitial     time.Duration
	backoffMax         time.Duration
	unhealthyThreshold time.Duration
	lastError          error
	query              queryFn
}

// NewNTPClock 创建NTP时钟
// 初始同步失败不致命：偏移置零，后续按退避策略重试
func NewNTPClock(opts *clockconfig.ClockOptions) *NTPClock {
	return newNTPClock(opts, ntpQuery)
}

func newNTPClock(opts *clockconfig.ClockOptions, query queryFn) *NTPClock {
	c := &NTPClock{
		server:             opts.NTPServer,
		syncInterval:       opts.SyncInterval,
		backoffInitial:     opts.BackoffInitial,
		backoffMax:         opts.BackoffMax,
		unhealthyThreshold: opts.OffsetThreshold,
		query:              query,
	}
	c.mu.Lock()
	c.syncLocked(time.Now())
	c.mu.Unlock()
	return c
}

func (c *NTPClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maybeSyncLocked()
	return time.Now().Add(c.offset)
}

func (c *NTPClock) Since(t time.Time) time.Duration { return c.Now().Sub(t) }
func (c *NTPClock) Unix() int64                     { return c.Now().Unix() }
func (c *NTPClock) UnixNano() int64                 { return c.Now().UnixNano() }

// Health 返回当前健康状态与关键指标
// healthy: 最近一次同步无错误，且偏移量在阈值内
func (c *NTPClock) Health() (healthy bool, offset time.Duration, lastSync time.Time, lastError error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	offset, lastSync, lastError = c.offset, c.lastSync, c.lastError
	if c.unhealthyThreshold > 0 && (offset < -c.unhealthyThreshold || offset > c.unhealthyThreshold) {
		return false, offset, lastSync, lastError
	}
	if lastError != nil {
		return false, offset, lastSync, lastError
	}
	return true, offset, lastSync, nil
}

func (c *NTPClock) maybeSyncLocked() {
	now := time.Now()
	effective := c.syncInterval
	if c.backoff > 0 {
		effective = c.backoff
	}
	if now.Sub(c.lastAttempt) < effective {
		return
	}
	c.syncLocked(now)
}

func (c *NTPClock) syncLocked(now time.Time) {
	c.lastAttempt = now
	offset, err := c.query(c.server)
	if err != nil {
		c.lastError = err
		if c.backoff == 0 {
			c.backoff = c.backoffInitial
		} else {
			c.backoff *= 2
		}
		if c.backoffMax > 0 && c.backoff > c.backoffMax {
			c.backoff = c.backoffMax
		}
		return
	}
	c.offset = offset
	c.lastSync = now
	c.lastError = nil
	c.backoff = 0
}

var _ infraClock.Clock = (*NTPClock)(nil)
