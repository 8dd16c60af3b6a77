package zkverify

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"

	"adn/logx"
	"adn/monitoring"
)

const (
	CACHE_EXPIRY_DURATION = 30 * time.Minute
	CLEANER_INTERVAL      = 10 * time.Minute
)

type CacheEntry struct {
	value    bool
	expireAt time.Time
}

// Groth16Verifier checks artifact proofs against a fixed verifying key. The
// proof envelope is a 4-byte big endian proof length, the serialized proof,
// then the serialized public witness. The witness must carry exactly one
// public input: the statements hash reduced into the BN254 scalar field.
type Groth16Verifier struct {
	vk    groth16.VerifyingKey
	cache sync.Map // map[string]CacheEntry
}

func NewGroth16Verifier(keyPath string) *Groth16Verifier {
	vkB64, err := os.ReadFile(keyPath)
	if err != nil {
		logx.Error("ZkVerify", fmt.Sprintf("Failed to read zk verifying key: %v", err))
		return nil
	}
	vkBytes, err := base64.StdEncoding.DecodeString(string(vkB64))
	if err != nil {
		logx.Error("ZkVerify", fmt.Sprintf("Failed to decode zk verifying key: %v", err))
		return nil
	}
	vk := groth16.NewVerifyingKey(ecc.BN254)
	if _, err := vk.ReadFrom(bytes.NewReader(vkBytes)); err != nil {
		logx.Error("ZkVerify", fmt.Sprintf("Failed to read verifying key: %v", err))
		return nil
	}

	v := &Groth16Verifier{vk: vk}
	go v.cleaner()
	return v
}

func (v *Groth16Verifier) cleaner() {
	for {
		time.Sleep(CLEANER_INTERVAL)
		now := time.Now()
		v.cache.Range(func(key, value interface{}) bool {
			entry := value.(CacheEntry)
			if now.After(entry.expireAt) {
				v.cache.Delete(key)
			}
			return true
		})
	}
}

func makeCacheKey(proof []byte, statementsHash [32]byte) string {
	h := sha256.New()
	h.Write(proof)
	h.Write(statementsHash[:])
	return hex.EncodeToString(h.Sum(nil))
}

func (v *Groth16Verifier) Verify(proof []byte, statementsHash [32]byte) bool {
	cacheKey := makeCacheKey(proof, statementsHash)

	if val, ok := v.cache.Load(cacheKey); ok {
		entry := val.(CacheEntry)
		if time.Now().Before(entry.expireAt) {
			return entry.value
		}
		v.cache.Delete(cacheKey)
	}

	start := time.Now()
	result := v.verifyInternal(proof, statementsHash)
	monitoring.RecordVerifyDuration(time.Since(start))

	v.cache.Store(cacheKey, CacheEntry{
		value:    result,
		expireAt: time.Now().Add(CACHE_EXPIRY_DURATION),
	})

	return result
}

func (v *Groth16Verifier) verifyInternal(envelope []byte, statementsHash [32]byte) bool {
	if len(envelope) < 4 {
		logx.Error("ZkVerify", "Proof envelope too short")
		return false
	}
	proofLen := binary.BigEndian.Uint32(envelope[:4])
	if int(proofLen) > len(envelope)-4 {
		logx.Error("ZkVerify", "Proof length exceeds envelope")
		return false
	}
	proofBytes := envelope[4 : 4+proofLen]
	pwBytes := envelope[4+proofLen:]

	proof := groth16.NewProof(ecc.BN254)
	if _, err := proof.ReadFrom(bytes.NewReader(proofBytes)); err != nil {
		logx.Error("ZkVerify", fmt.Sprintf("Failed to read proof: %v", err))
		return false
	}

	pw, err := frontend.NewWitness(nil, ecc.BN254.ScalarField())
	if err != nil {
		logx.Error("ZkVerify", fmt.Sprintf("Failed to create public witness: %v", err))
		return false
	}
	if _, err := pw.ReadFrom(bytes.NewReader(pwBytes)); err != nil {
		logx.Error("ZkVerify", fmt.Sprintf("Failed to read public witness: %v", err))
		return false
	}

	pubVector := pw.Vector()
	pubString := fmt.Sprintf("%v", pubVector)
	pubStringTrimmed := strings.TrimSpace(strings.Trim(pubString, "[]"))
	var pubStringArray = []string{}
	if pubStringTrimmed != "" {
		pubStringArray = strings.Split(pubStringTrimmed, ",")
		for i := range pubStringArray {
			pubStringArray[i] = strings.TrimSpace(pubStringArray[i])
		}
	}

	if len(pubStringArray) != 1 {
		logx.Error("ZkVerify", "Public input length invalid")
		return false
	}
	if pubStringArray[0] != hashToBigIntBN254(statementsHash).String() {
		logx.Error("ZkVerify", "Statements hash invalid")
		return false
	}

	if err := groth16.Verify(proof, v.vk, pw); err != nil {
		logx.Error("ZkVerify", fmt.Sprintf("Failed to verify: %v", err))
		return false
	}
	logx.Debug("ZkVerify", "Verify success")
	return true
}

func hashToBigIntBN254(h [32]byte) *big.Int {
	scalarField := ecc.BN254.ScalarField()
	value := new(big.Int).SetBytes(h[:])
	return value.Mod(value, scalarField)
}
