package protocol

import (
	"crypto/md5"
	"encoding/hex"
)

// HashPassword returns the lowercase hex MD5 digest clients send as
// LoginRequest.Password. The server only ever sees and stores the digest.
func HashPassword(plain string) string {
	sum := md5.Sum([]byte(plain))
	return hex.EncodeToString(sum[:])
}
