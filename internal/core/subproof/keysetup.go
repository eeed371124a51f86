package subproof

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	gnarklogger "github.com/consensys/gnark/logger"
	"github.com/rs/zerolog"

	"github.com/weisyn/subproof/internal/core/subproof/circuits"
	"github.com/weisyn/subproof/internal/core/subproof/rangeproof"
	"github.com/weisyn/subproof/pkg/interfaces/infrastructure/log"
)

// RangeBits 等级差值范围证明的位宽（等级是 8 位值）
const RangeBits = 8

// 可信设置文件名
const (
	constraintSystemFile = "subscription.r1cs"
	provingKeyFile       = "subscription.pk"
	verifyingKeyFile     = "subscription.vk"
)

// KeyMaterial 可信设置产物
//
// 启动时生成一次，之后只读；证明与验证路径按指针共享，无需加锁。
type KeyMaterial struct {
	cs     constraint.ConstraintSystem
	pk     groth16.ProvingKey
	vk     groth16.VerifyingKey
	gens   *rangeproof.Generators
	vkHash string
}

var silenceGnarkOnce sync.Once

// silenceGnark 关闭 gnark 内部的 zerolog 输出
//
// gnark 日志器是进程级全局变量，并发证明期间反复替换会产生数据竞争，
// 因此只在进程内设置一次。
func silenceGnark() {
	silenceGnarkOnce.Do(func() {
		gnarklogger.Set(zerolog.New(io.Discard).Level(zerolog.Disabled))
	})
}

// NewKeyMaterial 编译订阅电路并执行 Groth16 Setup
func NewKeyMaterial(logger log.Logger) (*KeyMaterial, error) {
	silenceGnark()

	var circuit circuits.SubscriptionCircuit
	cs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &circuit)
	if err != nil {
		return nil, WrapZKProofError("compile", err)
	}

	pk, vk, err := groth16.Setup(cs)
	if err != nil {
		return nil, WrapZKProofError("setup", err)
	}

	km, err := assembleKeyMaterial(cs, pk, vk)
	if err != nil {
		return nil, err
	}
	if logger != nil {
		logger.Infof("可信设置完成: constraints=%d, vk=%s", cs.GetNbConstraints(), km.vkHash[:16])
	}
	return km, nil
}

// LoadKeyMaterial 从目录加载可信设置
func LoadKeyMaterial(dir string, logger log.Logger) (*KeyMaterial, error) {
	silenceGnark()

	cs := groth16.NewCS(ecc.BN254)
	if err := readFrom(filepath.Join(dir, constraintSystemFile), cs); err != nil {
		return nil, WrapZKProofError("load_constraint_system", err)
	}
	pk := groth16.NewProvingKey(ecc.BN254)
	if err := readFrom(filepath.Join(dir, provingKeyFile), pk); err != nil {
		return nil, WrapZKProofError("load_proving_key", err)
	}
	vk := groth16.NewVerifyingKey(ecc.BN254)
	if err := readFrom(filepath.Join(dir, verifyingKeyFile), vk); err != nil {
		return nil, WrapZKProofError("load_verifying_key", err)
	}

	km, err := assembleKeyMaterial(cs, pk, vk)
	if err != nil {
		return nil, err
	}
	if logger != nil {
		logger.Infof("已加载可信设置: dir=%s, vk=%s", dir, km.vkHash[:16])
	}
	return km, nil
}

// LoadOrCreateKeyMaterial dir 为空时总是重新生成；
// 目录中已有完整产物时加载，否则生成后写入该目录
func LoadOrCreateKeyMaterial(dir string, logger log.Logger) (*KeyMaterial, error) {
	if dir == "" {
		return NewKeyMaterial(logger)
	}
	if hasKeyFiles(dir) {
		return LoadKeyMaterial(dir, logger)
	}
	km, err := NewKeyMaterial(logger)
	if err != nil {
		return nil, err
	}
	if err := km.Save(dir); err != nil {
		return nil, err
	}
	return km, nil
}

// Save 把约束系统与密钥写入目录（先写临时文件再重命名）
func (k *KeyMaterial) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("创建可信设置目录失败: %w", err)
	}
	files := []struct {
		name string
		obj  io.WriterTo
	}{
		{constraintSystemFile, k.cs},
		{provingKeyFile, k.pk},
		{verifyingKeyFile, k.vk},
	}
	for _, f := range files {
		if err := writeAtomic(filepath.Join(dir, f.name), f.obj); err != nil {
			return fmt.Errorf("写入 %s 失败: %w", f.name, err)
		}
	}
	return nil
}

// VerifyingKeyHash 验证密钥的 sha256（十六进制）
func (k *KeyMaterial) VerifyingKeyHash() string { return k.vkHash }

// NbConstraints 约束数量
func (k *KeyMaterial) NbConstraints() int { return k.cs.GetNbConstraints() }

// Generators 范围证明生成元
func (k *KeyMaterial) Generators() *rangeproof.Generators { return k.gens }

// ============================================================================
//                              内部辅助
// ============================================================================

func assembleKeyMaterial(cs constraint.ConstraintSystem, pk groth16.ProvingKey, vk groth16.VerifyingKey) (*KeyMaterial, error) {
	gens, err := rangeproof.NewGenerators(RangeBits)
	if err != nil {
		return nil, WrapZKProofError("generators", err)
	}

	h := sha256.New()
	if _, err := vk.WriteTo(h); err != nil {
		return nil, WrapZKProofError("vk_hash", err)
	}

	return &KeyMaterial{
		cs:     cs,
		pk:     pk,
		vk:     vk,
		gens:   gens,
		vkHash: hex.EncodeToString(h.Sum(nil)),
	}, nil
}

func hasKeyFiles(dir string) bool {
	for _, name := range []string{constraintSystemFile, provingKeyFile, verifyingKeyFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			return false
		}
	}
	return true
}

func readFrom(path string, obj io.ReaderFrom) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = obj.ReadFrom(bufio.NewReader(f))
	return err
}

func writeAtomic(path string, obj io.WriterTo) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	w := bufio.NewWriter(tmp)
	if _, err = obj.WriteTo(w); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = w.Flush(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// errKeyMaterialMissing 引擎未配置可信设置
var errKeyMaterialMissing = errors.New("key material missing")
