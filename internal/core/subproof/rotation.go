package subproof

import (
	"strings"
	"sync"
	"time"

	"github.com/weisyn/subproof/pkg/types"
)

// maxRotationHistory 每个订阅保留的轮换记录上限，超出后丢弃最旧的记录
const maxRotationHistory = 32

// DIDRotator DID 轮换
//
// 轮换授权材料由外部 DID 密钥管理方产生，这里只检查非空。
// 轮换只修改 DID；秘密、等级和到期时间保持不变，
// 因此 DID 承诺与无效化值随新 DID 变化。
type DIDRotator struct {
	store *SubscriptionStore

	mu      sync.RWMutex
	history map[string][]types.RotationRecord
}

// NewDIDRotator 创建 DID 轮换器
func NewDIDRotator(store *SubscriptionStore) *DIDRotator {
	return &DIDRotator{
		store:   store,
		history: make(map[string][]types.RotationRecord),
	}
}

// Rotate 校验授权材料并替换 DID
//
// 检查顺序：授权材料为空 → ErrInvalidProof；订阅不存在 → ErrSubscriptionNotFound；
// 存储 DID 与 oldDID 不一致 → ErrDIDMismatch；新 DID 为空 → ErrInvalidProof。
func (r *DIDRotator) Rotate(id, oldDID, newDID string, rotationProof []byte, now time.Time) error {
	if len(rotationProof) == 0 {
		return WrapInvalidProofError("empty rotation proof")
	}

	sub, err := r.store.Get(id)
	if err != nil {
		return err
	}
	if sub.DID != oldDID {
		return WrapDIDMismatchError(id)
	}
	if strings.TrimSpace(newDID) == "" {
		return WrapInvalidProofError("empty new did")
	}

	// 比较与替换在分片写锁内再做一次，防止并发轮换交错；
	// 轮换记录也在该锁内追加，保证记录顺序与 DID 链一致
	return r.store.UpdateDID(id, oldDID, newDID, func() {
		r.record(id, types.RotationRecord{
			OldDID:    oldDID,
			NewDID:    newDID,
			RotatedAt: time.Unix(now.Unix(), 0).UTC(),
		})
	})
}

func (r *DIDRotator) record(id string, rec types.RotationRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	records := append(r.history[id], rec)
	if len(records) > maxRotationHistory {
		records = records[len(records)-maxRotationHistory:]
	}
	r.history[id] = records
}

// History 返回订阅的轮换记录副本（按时间升序）
func (r *DIDRotator) History(id string) []types.RotationRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]types.RotationRecord(nil), r.history[id]...)
}

// Forget 删除订阅的轮换记录（订阅被清理或撤销时调用）
func (r *DIDRotator) Forget(ids ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		delete(r.history, id)
	}
}
