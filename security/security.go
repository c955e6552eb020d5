// Package security implements the Standard security handler far enough to
// open documents protected by an owner password only.
package security

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"crypto/rc4"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/lesonky/invoice-merge-tool/ir/raw"
)

// ErrInvalidPassword is returned when a password does not open the document.
var ErrInvalidPassword = errors.New("invalid password")

// DataClass identifies the kind of payload being encrypted or decrypted.
type DataClass int

const (
	DataClassStream DataClass = iota
	DataClassString
)

type Handler interface {
	IsEncrypted() bool
	Authenticate(password string) error
	DecryptWithFilter(objNum, gen int, data []byte, class DataClass, cryptFilter string) ([]byte, error)
	Decrypt(objNum, gen int, data []byte, class DataClass) ([]byte, error)
	Encrypt(objNum, gen int, data []byte, class DataClass) ([]byte, error)
	EncryptMetadata() bool
}

type HandlerBuilder struct {
	encryptDict *raw.DictObj
	trailer     *raw.DictObj
	fileID      []byte
}

func (b *HandlerBuilder) WithEncryptDict(d *raw.DictObj) *HandlerBuilder { b.encryptDict = d; return b }
func (b *HandlerBuilder) WithTrailer(d *raw.DictObj) *HandlerBuilder     { b.trailer = d; return b }
func (b *HandlerBuilder) WithFileID(id []byte) *HandlerBuilder           { b.fileID = id; return b }

func (b *HandlerBuilder) Build() (Handler, error) {
	if b.encryptDict == nil {
		return noEncryptionHandler{}, nil
	}
	d := b.encryptDict
	if f := d.Name("Filter"); f != "" && f != "Standard" {
		return nil, fmt.Errorf("unsupported encryption filter %s", f)
	}
	v, _ := d.Int("V")
	if v == 0 {
		v = 1
	}
	if v > 5 {
		return nil, fmt.Errorf("encryption V=%d not supported", v)
	}
	r, ok := d.Int("R")
	if !ok {
		r = 2
	}
	if r < 2 || r > 6 {
		return nil, fmt.Errorf("encryption R=%d not supported", r)
	}
	keyLen := int64(40)
	if v >= 5 {
		keyLen = 256
	} else if n, ok := d.Int("Length"); ok && n > 0 {
		keyLen = n
	}
	if v == 4 && keyLen < 128 {
		keyLen = 128
	}
	if keyLen%8 != 0 || keyLen < 40 {
		return nil, errors.New("encryption length must be a multiple of 8 and at least 40")
	}
	p, _ := d.Int("P")

	id := b.fileID
	if len(id) == 0 && b.trailer != nil {
		if arr, ok := b.trailer.Get("ID").(*raw.ArrayObj); ok && arr.Len() > 0 {
			if s, ok := arr.Items[0].(raw.StringObj); ok {
				id = s.Bytes
			}
		}
	}
	encryptMeta := true
	if bv, ok := d.Get("EncryptMetadata").(raw.BoolObj); ok {
		encryptMeta = bv.V
	}

	base := algoRC4
	if v >= 4 {
		base = algoAES
	}
	cf, err := parseCryptFilters(d, base)
	if err != nil {
		return nil, err
	}
	streamAlgo, err := resolveCryptFilter(d, "StmF", base, cf, v)
	if err != nil {
		return nil, err
	}
	stringAlgo, err := resolveCryptFilter(d, "StrF", base, cf, v)
	if err != nil {
		return nil, err
	}
	return &standardHandler{
		v:            int(v),
		r:            int(r),
		keyBytes:     int(keyLen / 8),
		owner:        stringBytes(d, "O"),
		user:         stringBytes(d, "U"),
		oe:           stringBytes(d, "OE"),
		ue:           stringBytes(d, "UE"),
		p:            int32(p),
		fileID:       id,
		encryptMeta:  encryptMeta,
		cryptFilters: cf,
		streamAlgo:   streamAlgo,
		stringAlgo:   stringAlgo,
	}, nil
}

type cryptAlgo int

const (
	algoNone cryptAlgo = iota
	algoRC4
	algoAES
)

type standardHandler struct {
	v, r         int
	keyBytes     int
	owner, user  []byte
	oe, ue       []byte
	p            int32
	fileID       []byte
	encryptMeta  bool
	cryptFilters map[string]cryptAlgo
	streamAlgo   cryptAlgo
	stringAlgo   cryptAlgo

	key    []byte
	authed bool
}

func (h *standardHandler) IsEncrypted() bool     { return true }
func (h *standardHandler) EncryptMetadata() bool { return h.encryptMeta }

// Authenticate tries password as the user password, then as the owner
// password for R5/R6 where the owner check needs no RC4 inversion.
func (h *standardHandler) Authenticate(password string) error {
	if h.r >= 5 {
		key, err := h.authenticateAES256([]byte(password))
		if err != nil {
			return err
		}
		h.key, h.authed = key, true
		return nil
	}
	key := deriveKey([]byte(password), h.owner, h.p, h.fileID, h.keyBytes, h.r, h.encryptMeta)
	if !checkUserPassword(key, h.user, h.fileID, h.r) {
		return ErrInvalidPassword
	}
	h.key, h.authed = key, true
	return nil
}

func (h *standardHandler) DecryptWithFilter(objNum, gen int, data []byte, class DataClass, cryptFilter string) ([]byte, error) {
	if !h.authed {
		return nil, errors.New("handler not authenticated")
	}
	algo, err := h.algoFor(class, cryptFilter)
	if err != nil {
		return nil, err
	}
	if algo == algoNone || len(data) == 0 {
		return data, nil
	}
	key := objectKey(h.key, objNum, gen, h.r, algo == algoAES)
	if algo == algoAES {
		return aesDecrypt(key, data)
	}
	return rc4Crypt(key, data)
}

func (h *standardHandler) Decrypt(objNum, gen int, data []byte, class DataClass) ([]byte, error) {
	return h.DecryptWithFilter(objNum, gen, data, class, "")
}

func (h *standardHandler) Encrypt(objNum, gen int, data []byte, class DataClass) ([]byte, error) {
	if !h.authed {
		return nil, errors.New("handler not authenticated")
	}
	algo, err := h.algoFor(class, "")
	if err != nil {
		return nil, err
	}
	if algo == algoNone || len(data) == 0 {
		return data, nil
	}
	key := objectKey(h.key, objNum, gen, h.r, algo == algoAES)
	if algo == algoAES {
		return aesEncrypt(key, data)
	}
	return rc4Crypt(key, data)
}

func (h *standardHandler) algoFor(class DataClass, filter string) (cryptAlgo, error) {
	switch filter {
	case "Identity":
		return algoNone, nil
	case "", "Standard":
		if class == DataClassString {
			return h.stringAlgo, nil
		}
		return h.streamAlgo, nil
	}
	if algo, ok := h.cryptFilters[filter]; ok {
		return algo, nil
	}
	return algoNone, fmt.Errorf("crypt filter %s not defined", filter)
}

func (h *standardHandler) authenticateAES256(pwd []byte) ([]byte, error) {
	if len(pwd) > 127 {
		pwd = pwd[:127]
	}
	if len(h.user) >= 48 && len(h.ue) >= 32 {
		if h.hashRev(pwd, h.user[32:40], nil, h.user[:32]) {
			kh := h.hash(pwd, h.user[40:48], nil)
			return aesCBCNoPad(kh, h.ue[:32])
		}
	}
	if len(h.owner) >= 48 && len(h.oe) >= 32 && len(h.user) >= 48 {
		if h.hashRev(pwd, h.owner[32:40], h.user[:48], h.owner[:32]) {
			kh := h.hash(pwd, h.owner[40:48], h.user[:48])
			return aesCBCNoPad(kh, h.oe[:32])
		}
	}
	return nil, ErrInvalidPassword
}

func (h *standardHandler) hashRev(pwd, salt, extra, want []byte) bool {
	return bytes.Equal(h.hash(pwd, salt, extra), want)
}

// hash is SHA-256 for R5 and the iterated hardened hash for R6.
func (h *standardHandler) hash(pwd, salt, extra []byte) []byte {
	if h.r == 5 {
		sum := sha256.Sum256(concat(pwd, salt, extra))
		return sum[:]
	}
	return rev6Hash(pwd, salt, extra)
}

type noEncryptionHandler struct{}

func (noEncryptionHandler) IsEncrypted() bool                  { return false }
func (noEncryptionHandler) Authenticate(password string) error { return nil }
func (noEncryptionHandler) DecryptWithFilter(objNum, gen int, data []byte, class DataClass, cryptFilter string) ([]byte, error) {
	return data, nil
}
func (noEncryptionHandler) Decrypt(objNum, gen int, data []byte, class DataClass) ([]byte, error) {
	return data, nil
}
func (noEncryptionHandler) Encrypt(objNum, gen int, data []byte, class DataClass) ([]byte, error) {
	return data, nil
}
func (noEncryptionHandler) EncryptMetadata() bool { return false }

// NoopHandler returns a handler that leaves data untouched.
func NoopHandler() Handler { return noEncryptionHandler{} }

var passwordPadding = []byte{
	0x28, 0xBF, 0x4E, 0x5E, 0x4E, 0x75, 0x8A, 0x41,
	0x64, 0x00, 0x4E, 0x56, 0xFF, 0xFA, 0x01, 0x08,
	0x2E, 0x2E, 0x00, 0xB6, 0xD0, 0x68, 0x3E, 0x80,
	0x2F, 0x0C, 0xA9, 0xFE, 0x64, 0x53, 0x69, 0x7A,
}

func padPassword(pwd []byte) []byte {
	padded := make([]byte, 32)
	n := copy(padded, pwd)
	copy(padded[n:], passwordPadding)
	return padded
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// rev6Hash is the iterated SHA-2/AES hash of revision 6.
func rev6Hash(pwd, salt, extra []byte) []byte {
	sum := sha256.Sum256(concat(pwd, salt, extra))
	k := sum[:]
	for i := 0; ; i++ {
		k1 := bytes.Repeat(concat(pwd, k, extra), 64)
		block, _ := aes.NewCipher(k[:16])
		e := make([]byte, len(k1))
		cipher.NewCBCEncrypter(block, k[16:32]).CryptBlocks(e, k1)
		mod := 0
		for _, b := range e[:16] {
			mod += int(b)
		}
		switch mod % 3 {
		case 0:
			s := sha256.Sum256(e)
			k = s[:]
		case 1:
			s := sha512.Sum384(e)
			k = s[:]
		default:
			s := sha512.Sum512(e)
			k = s[:]
		}
		if i >= 63 && int(e[len(e)-1]) <= i-31 {
			break
		}
	}
	return k[:32]
}

func deriveKey(pwd, owner []byte, pVal int32, fileID []byte, keyLenBytes, r int, encryptMeta bool) []byte {
	if keyLenBytes <= 0 {
		keyLenBytes = 5
	}
	if keyLenBytes > 16 {
		keyLenBytes = 16
	}
	var pBuf [4]byte
	binary.LittleEndian.PutUint32(pBuf[:], uint32(pVal))
	data := concat(padPassword(pwd), owner, pBuf[:], fileID)
	if r >= 4 && !encryptMeta {
		data = append(data, 0xFF, 0xFF, 0xFF, 0xFF)
	}
	sum := md5.Sum(data)
	key := sum[:]
	if r >= 3 {
		for i := 0; i < 50; i++ {
			sum = md5.Sum(key[:keyLenBytes])
			key = sum[:]
		}
	} else {
		keyLenBytes = 5
	}
	return append([]byte(nil), key[:keyLenBytes]...)
}

// userEntry computes the /U value a key produces.
func userEntry(key, fileID []byte, r int) []byte {
	if r <= 2 {
		return rc4Simple(key, passwordPadding)
	}
	sum := md5.Sum(concat(passwordPadding, fileID))
	val := sum[:]
	for i := 0; i < 20; i++ {
		tmp := make([]byte, len(key))
		for j := range key {
			tmp[j] = key[j] ^ byte(i)
		}
		val = rc4Simple(tmp, val)
	}
	return append(val, make([]byte, 16)...)
}

func checkUserPassword(key, user, fileID []byte, r int) bool {
	want := userEntry(key, fileID, r)
	n := 32
	if r >= 3 {
		n = 16
	}
	return len(user) >= n && bytes.Equal(want[:n], user[:n])
}

func parseCryptFilters(dict *raw.DictObj, base cryptAlgo) (map[string]cryptAlgo, error) {
	out := make(map[string]cryptAlgo)
	cfDict, ok := dict.Get("CF").(*raw.DictObj)
	if !ok {
		return out, nil
	}
	for name, obj := range cfDict.KV {
		entry, ok := obj.(*raw.DictObj)
		if !ok {
			return nil, errors.New("crypt filter entry must be a dictionary")
		}
		algo := base
		switch entry.Name("CFM") {
		case "":
		case "V2":
			algo = algoRC4
		case "AESV2", "AESV3":
			algo = algoAES
		case "None":
			algo = algoNone
		default:
			return nil, fmt.Errorf("unsupported crypt filter method %s", entry.Name("CFM"))
		}
		out[name] = algo
	}
	return out, nil
}

func resolveCryptFilter(dict *raw.DictObj, key string, base cryptAlgo, cf map[string]cryptAlgo, v int64) (cryptAlgo, error) {
	if v < 4 {
		return algoRC4, nil
	}
	name := dict.Name(key)
	switch name {
	case "", "Identity":
		return algoNone, nil
	}
	if algo, ok := cf[name]; ok {
		return algo, nil
	}
	return algoNone, fmt.Errorf("crypt filter %s not defined", name)
}

func objectKey(fileKey []byte, objNum, gen int, r int, useAES bool) []byte {
	if r >= 5 {
		return fileKey
	}
	key := append([]byte{}, fileKey...)
	key = append(key, byte(objNum), byte(objNum>>8), byte(objNum>>16), byte(gen), byte(gen>>8))
	if useAES {
		key = append(key, 0x73, 0x41, 0x6C, 0x54) // "sAlT"
	}
	hash := md5.Sum(key)
	n := len(fileKey) + 5
	if n > 16 {
		n = 16
	}
	return hash[:n]
}

func stringBytes(d *raw.DictObj, key string) []byte {
	if s, ok := d.Get(key).(raw.StringObj); ok {
		return s.Bytes
	}
	return nil
}

func rc4Simple(key []byte, data []byte) []byte {
	out, _ := rc4Crypt(key, data)
	return out
}

func rc4Crypt(key []byte, data []byte) ([]byte, error) {
	c, err := rc4.NewCipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	c.XORKeyStream(out, data)
	return out, nil
}

func aesEncrypt(key []byte, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, err
	}
	padLen := aes.BlockSize - len(data)%aes.BlockSize
	plain := append(append([]byte(nil), data...), bytes.Repeat([]byte{byte(padLen)}, padLen)...)
	out := make([]byte, aes.BlockSize+len(plain))
	copy(out, iv)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[aes.BlockSize:], plain)
	return out, nil
}

func aesDecrypt(key []byte, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(data) < 2*aes.BlockSize {
		return nil, errors.New("aes ciphertext too short")
	}
	iv, ct := data[:aes.BlockSize], data[aes.BlockSize:]
	if len(ct)%aes.BlockSize != 0 {
		return nil, errors.New("aes ciphertext not multiple of blocksize")
	}
	out := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ct)
	pad := int(out[len(out)-1])
	if pad <= 0 || pad > aes.BlockSize || pad > len(out) {
		return nil, errors.New("invalid aes padding")
	}
	return out[:len(out)-pad], nil
}

func aesCBCNoPad(key, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, make([]byte, aes.BlockSize)).CryptBlocks(out, data)
	return out, nil
}
