package security

import (
	"crypto/md5"
	"fmt"

	"github.com/lesonky/invoice-merge-tool/ir/raw"
)

// OpenWithEmptyPassword builds the handler for an /Encrypt dictionary and
// authenticates it with the empty user password. Documents protected only by
// an owner password open this way; anything else returns ErrInvalidPassword
// and must be treated as unreadable ciphertext.
func OpenWithEmptyPassword(encrypt, trailer *raw.DictObj) (Handler, error) {
	return OpenWithPassword(encrypt, trailer, "")
}

// OpenWithPassword is OpenWithEmptyPassword for an explicit user or owner
// password.
func OpenWithPassword(encrypt, trailer *raw.DictObj, password string) (Handler, error) {
	h, err := (&HandlerBuilder{}).WithEncryptDict(encrypt).WithTrailer(trailer).Build()
	if err != nil {
		return nil, err
	}
	if err := h.Authenticate(password); err != nil {
		return nil, err
	}
	return h, nil
}

// DecryptObject decrypts every string nested in obj and, for streams, the
// payload. Cross-reference streams are never encrypted; metadata streams are
// left alone when the handler says metadata stays in the clear.
func DecryptObject(h Handler, ref raw.ObjectRef, obj raw.Object) (raw.Object, error) {
	switch v := obj.(type) {
	case raw.StringObj:
		out, err := h.Decrypt(ref.Num, ref.Gen, v.Bytes, DataClassString)
		if err != nil {
			return nil, err
		}
		return raw.StringObj{Bytes: out, Hex: v.Hex}, nil
	case *raw.ArrayObj:
		items := make([]raw.Object, len(v.Items))
		for i, it := range v.Items {
			d, err := DecryptObject(h, ref, it)
			if err != nil {
				return nil, err
			}
			items[i] = d
		}
		return &raw.ArrayObj{Items: items}, nil
	case *raw.DictObj:
		out := raw.Dict()
		for k, val := range v.KV {
			d, err := DecryptObject(h, ref, val)
			if err != nil {
				return nil, err
			}
			out.KV[k] = d
		}
		return out, nil
	case *raw.StreamObj:
		if v.Dict.Name("Type") == "XRef" {
			return v, nil
		}
		dict, err := DecryptObject(h, ref, v.Dict)
		if err != nil {
			return nil, err
		}
		data := v.Data
		if v.Dict.Name("Type") != "Metadata" || h.EncryptMetadata() {
			data, err = h.DecryptWithFilter(ref.Num, ref.Gen, v.Data, DataClassStream, streamCryptFilter(v.Dict))
			if err != nil {
				return nil, fmt.Errorf("decrypt stream %v: %w", ref, err)
			}
		}
		return raw.NewStream(dict.(*raw.DictObj), data), nil
	}
	return obj, nil
}

// streamCryptFilter returns the crypt filter named by a /Crypt entry in the
// stream's filter chain, "" when the default applies.
func streamCryptFilter(d *raw.DictObj) string {
	names := []raw.Object{d.Get("Filter")}
	if arr, ok := d.Get("Filter").(*raw.ArrayObj); ok {
		names = arr.Items
	}
	for i, n := range names {
		if nm, ok := n.(raw.NameObj); !ok || nm.Val != "Crypt" {
			continue
		}
		parms := d.Get("DecodeParms")
		if arr, ok := parms.(*raw.ArrayObj); ok && i < len(arr.Items) {
			parms = arr.Items[i]
		}
		if pd, ok := parms.(*raw.DictObj); ok && pd.Name("Name") != "" {
			return pd.Name("Name")
		}
		return "Identity"
	}
	return ""
}

// NewRC4Encryption returns a revision 3, 128-bit RC4 /Encrypt dictionary and
// an authenticated handler that encrypts with it.
func NewRC4Encryption(userPwd, ownerPwd string, fileID []byte, p int32) (*raw.DictObj, Handler) {
	if ownerPwd == "" {
		ownerPwd = userPwd
	}
	sum := md5.Sum(padPassword([]byte(ownerPwd)))
	okey := sum[:]
	for i := 0; i < 50; i++ {
		sum = md5.Sum(okey)
		okey = sum[:]
	}
	o := rc4Simple(okey, padPassword([]byte(userPwd)))
	for i := 1; i <= 19; i++ {
		tmp := make([]byte, len(okey))
		for j := range okey {
			tmp[j] = okey[j] ^ byte(i)
		}
		o = rc4Simple(tmp, o)
	}
	key := deriveKey([]byte(userPwd), o, p, fileID, 16, 3, true)
	u := userEntry(key, fileID, 3)

	d := raw.Dict()
	d.Set("Filter", raw.NameLiteral("Standard"))
	d.Set("V", raw.NumberInt(2))
	d.Set("R", raw.NumberInt(3))
	d.Set("Length", raw.NumberInt(128))
	d.Set("O", raw.Str(o))
	d.Set("U", raw.Str(u))
	d.Set("P", raw.NumberInt(int64(p)))

	h := &standardHandler{
		v: 2, r: 3, keyBytes: 16, owner: o, user: u, p: p, fileID: fileID,
		encryptMeta: true, streamAlgo: algoRC4, stringAlgo: algoRC4,
		key: key, authed: true,
	}
	return d, h
}
