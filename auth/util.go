package auth

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
)

// mongoPasswordDigest computes md5(username + ":mongo:" + password),
// the salted password form shared by MONGODB-CR and SCRAM-SHA-1.
func mongoPasswordDigest(username, password string) string {
	h := md5.New()
	fmt.Fprintf(h, "%s:mongo:%s", username, password)
	return hex.EncodeToString(h.Sum(nil))
}
