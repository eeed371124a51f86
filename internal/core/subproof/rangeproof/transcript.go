package rangeproof

import (
	"encoding/binary"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"golang.org/x/crypto/blake2b"
)

const transcriptDomain = "subproof/bulletproof/v1"

// transcript Fiat-Shamir 转录
//
// 状态是一条 blake2b-256 链：每次吸收都把 (标签, 数据) 连同旧状态重新哈希，
// 挑战值从状态派生后也被吸收，保证后续挑战依赖全部历史。
type transcript struct {
	state [blake2b.Size256]byte
}

func newTranscript(label string) *transcript {
	t := &transcript{}
	t.state = blake2b.Sum256(append([]byte(transcriptDomain), label...))
	return t
}

func (t *transcript) append(label string, data []byte) {
	buf := make([]byte, 0, len(t.state)+8+len(label)+len(data))
	buf = append(buf, t.state[:]...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(label)))
	buf = append(buf, label...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(data)))
	buf = append(buf, data...)
	t.state = blake2b.Sum256(buf)
}

func (t *transcript) appendUint64(label string, v uint64) {
	t.append(label, binary.BigEndian.AppendUint64(nil, v))
}

// appendPoint 吸收点；无穷远点以单字节 0 表示
func (t *transcript) appendPoint(label string, p *secp256k1.JacobianPoint) {
	enc, err := EncodePoint(p)
	if err != nil {
		enc = []byte{0}
	}
	t.append(label, enc)
}

func (t *transcript) appendScalar(label string, s *secp256k1.ModNScalar) {
	t.append(label, EncodeScalar(s))
}

// challenge 派生非零挑战标量
func (t *transcript) challenge(label string) secp256k1.ModNScalar {
	for {
		t.append("challenge", []byte(label))
		var c secp256k1.ModNScalar
		c.SetByteSlice(t.state[:])
		if !c.IsZero() {
			return c
		}
	}
}
