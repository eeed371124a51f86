package subproof

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"
	"golang.org/x/sync/singleflight"

	"github.com/weisyn/subproof/pkg/types"
)

// cryptoOutcome 密码学校验结果（与验证时间无关，可以缓存）
type cryptoOutcome struct {
	snarkOK bool
	rangeOK bool
}

func (o cryptoOutcome) encode() []byte {
	out := []byte{0, 0}
	if o.snarkOK {
		out[0] = 1
	}
	if o.rangeOK {
		out[1] = 1
	}
	return out
}

func decodeOutcome(b []byte) (cryptoOutcome, bool) {
	if len(b) != 2 {
		return cryptoOutcome{}, false
	}
	return cryptoOutcome{snarkOK: b[0] == 1, rangeOK: b[1] == 1}, true
}

// verifyCache 验证结果缓存
//
// 只缓存密码学结果；过期与等级判断每次重新计算。并发的相同验证通过
// singleflight 合并为一次计算。cache 为 nil 时仅做合并不做缓存。
type verifyCache struct {
	cache *bigcache.BigCache
	group singleflight.Group
}

// newVerifyCache life 为 0 时禁用缓存
func newVerifyCache(life time.Duration, maxMB int) (*verifyCache, error) {
	vc := &verifyCache{}
	if life <= 0 {
		return vc, nil
	}

	cfg := bigcache.DefaultConfig(life)
	cfg.Shards = 1024
	cfg.HardMaxCacheSize = maxMB
	cfg.MaxEntrySize = 64
	cfg.CleanWindow = life
	cfg.Verbose = false

	cache, err := bigcache.New(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("创建验证缓存失败: %w", err)
	}
	vc.cache = cache
	return vc, nil
}

// resolve 命中缓存直接返回，否则合并并发请求执行 compute
func (vc *verifyCache) resolve(key string, compute func() (cryptoOutcome, error)) (cryptoOutcome, bool, error) {
	if vc.cache != nil {
		if raw, err := vc.cache.Get(key); err == nil {
			if out, ok := decodeOutcome(raw); ok {
				return out, true, nil
			}
		}
	}

	v, err, _ := vc.group.Do(key, func() (interface{}, error) {
		out, err := compute()
		if err != nil {
			return cryptoOutcome{}, err
		}
		if vc.cache != nil {
			_ = vc.cache.Set(key, out.encode())
		}
		return out, nil
	})
	if err != nil {
		return cryptoOutcome{}, false, err
	}
	return v.(cryptoOutcome), false, nil
}

// len 缓存条目数
func (vc *verifyCache) len() int {
	if vc.cache == nil {
		return 0
	}
	return vc.cache.Len()
}

func (vc *verifyCache) close() error {
	if vc.cache == nil {
		return nil
	}
	return vc.cache.Close()
}

// proofCacheKey 覆盖证明全部字段的摘要
func proofCacheKey(p *types.SubscriptionProof) string {
	h := sha256.New()
	writeField := func(b []byte) {
		var n [4]byte
		binary.BigEndian.PutUint32(n[:], uint32(len(b)))
		h.Write(n[:])
		h.Write(b)
	}
	writeField(p.ValidityProof)
	writeField(p.TierProof)
	writeField(p.Commitments.TierCommitment)
	writeField(p.Commitments.DIDCommitment)
	writeField(p.Commitments.Nullifier)

	var buf [17]byte
	binary.BigEndian.PutUint64(buf[0:8], uint64(p.Timestamp.Unix()))
	binary.BigEndian.PutUint64(buf[8:16], uint64(p.ExpiresAt.Unix()))
	buf[16] = byte(p.MinTier)
	h.Write(buf[:])

	return string(h.Sum(nil))
}
