package stamp

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"crypto/rc4"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/digitorus/pdf"
)

// passwordPad pads user and owner passwords of the standard security handler.
var passwordPad = []byte{
	0x28, 0xBF, 0x4E, 0x5E, 0x4E, 0x75, 0x8A, 0x41, 0x64, 0x00, 0x4E, 0x56, 0xFF, 0xFA, 0x01, 0x08,
	0x2E, 0x2E, 0x00, 0xB6, 0xD0, 0x68, 0x3E, 0x80, 0x2F, 0x0C, 0xA9, 0xFE, 0x64, 0x53, 0x69, 0x7A,
}

var errUnsupportedEncryption = errors.New("unsupported encryption dictionary")

// objectCipher encrypts the strings and streams of objects added to an
// encrypted document, using the file key the reader opened it with.
type objectCipher struct {
	key []byte
	aes bool
	// AES-256 documents use the file key for every object.
	v5 bool
}

// newObjectCipher derives the file key of rdr's document for the empty user
// password. It returns nil when the document is not encrypted.
func newObjectCipher(rdr *pdf.Reader) (*objectCipher, error) {
	trailer := rdr.Trailer()
	encrypt := trailer.Key("Encrypt")
	if encrypt.IsNull() {
		return nil, nil
	}
	if encrypt.Kind() != pdf.Dict || encrypt.Key("Filter").Name() != "Standard" {
		return nil, errUnsupportedEncryption
	}

	switch v := encrypt.Key("V").Int64(); v {
	case 1, 2, 4:
		key, err := legacyFileKey(encrypt, trailer.Key("ID").Index(0).RawString())
		if err != nil {
			return nil, err
		}
		return &objectCipher{key: key, aes: v == 4}, nil
	case 5:
		key, err := aes256FileKey(encrypt)
		if err != nil {
			return nil, err
		}
		return &objectCipher{key: key, aes: true, v5: true}, nil
	default:
		return nil, fmt.Errorf("%w: V=%d", errUnsupportedEncryption, v)
	}
}

func legacyFileKey(encrypt pdf.Value, id string) ([]byte, error) {
	n := encrypt.Key("Length").Int64()
	if n == 0 {
		n = 40
	}
	if n%8 != 0 || n < 40 || n > 128 {
		return nil, fmt.Errorf("%w: %d-bit key", errUnsupportedEncryption, n)
	}
	r := encrypt.Key("R").Int64()
	o := encrypt.Key("O").RawString()
	if len(o) != 32 {
		return nil, fmt.Errorf("%w: malformed /O", errUnsupportedEncryption)
	}
	p := uint32(encrypt.Key("P").Int64())

	return fileKey(nil, []byte(o), p, []byte(id), r, int(n/8)), nil
}

// fileKey computes the RC4 and AES-128 file key from a user password.
func fileKey(password, o []byte, p uint32, id []byte, revision int64, length int) []byte {
	h := md5.New()
	h.Write(padPassword(password))
	h.Write(o)
	h.Write([]byte{byte(p), byte(p >> 8), byte(p >> 16), byte(p >> 24)})
	h.Write(id)
	key := h.Sum(nil)

	if revision < 3 {
		return key[:5]
	}
	for i := 0; i < 50; i++ {
		h.Reset()
		h.Write(key[:length])
		key = h.Sum(key[:0])
	}
	return key[:length]
}

func padPassword(password []byte) []byte {
	padded := make([]byte, 0, 32)
	if len(password) > 32 {
		password = password[:32]
	}
	padded = append(padded, password...)
	return append(padded, passwordPad[:32-len(password)]...)
}

// aes256FileKey unwraps the file key with the empty password, trying the user
// entries before the owner ones.
func aes256FileKey(encrypt pdf.Value) ([]byte, error) {
	entries := [][2]string{{"U", "UE"}, {"O", "OE"}}
	for _, e := range entries {
		entry := []byte(encrypt.Key(e[0]).RawString())
		wrapped := []byte(encrypt.Key(e[1]).RawString())
		if len(entry) != 48 || len(wrapped) != 32 {
			return nil, fmt.Errorf("%w: malformed /%s", errUnsupportedEncryption, e[0])
		}

		if sum := sha256.Sum256(entry[32:40]); !bytes.Equal(sum[:], entry[:32]) {
			continue
		}

		kek := sha256.Sum256(entry[40:48])
		block, err := aes.NewCipher(kek[:])
		if err != nil {
			return nil, err
		}
		key := make([]byte, len(wrapped))
		cipher.NewCBCDecrypter(block, make([]byte, aes.BlockSize)).CryptBlocks(key, wrapped)
		return key, nil
	}

	return nil, fmt.Errorf("%w: empty password rejected", errUnsupportedEncryption)
}

func (c *objectCipher) objectKey(ref objRef) []byte {
	if c.v5 {
		return c.key
	}

	h := md5.New()
	h.Write(c.key)
	h.Write([]byte{byte(ref.id), byte(ref.id >> 8), byte(ref.id >> 16), byte(ref.gen), byte(ref.gen >> 8)})
	if c.aes {
		h.Write([]byte("sAlT"))
	}
	key := h.Sum(nil)

	if n := len(c.key) + 5; n < len(key) {
		key = key[:n]
	}
	return key
}

// encrypt returns data encrypted for the object ref. AES output is prefixed
// with its random initialization vector.
func (c *objectCipher) encrypt(ref objRef, data []byte) ([]byte, error) {
	key := c.objectKey(ref)

	if !c.aes {
		rc, err := rc4.NewCipher(key)
		if err != nil {
			return nil, err
		}
		out := make([]byte, len(data))
		rc.XORKeyStream(out, data)
		return out, nil
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	pad := aes.BlockSize - len(data)%aes.BlockSize
	out := make([]byte, aes.BlockSize+len(data)+pad)
	if _, err := rand.Read(out[:aes.BlockSize]); err != nil {
		return nil, err
	}
	body := out[aes.BlockSize:]
	copy(body, data)
	for i := len(data); i < len(body); i++ {
		body[i] = byte(pad)
	}
	cipher.NewCBCEncrypter(block, out[:aes.BlockSize]).CryptBlocks(body, body)

	return out, nil
}

// sealer returns the string sealer for object ref, or nil when the document
// is not encrypted.
func (c *objectCipher) sealer(ref objRef) sealer {
	if c == nil {
		return nil
	}
	return func(raw []byte) ([]byte, error) {
		return c.encrypt(ref, raw)
	}
}
