// Package signer builds the canonical request string the vendor expects and
// hashes it. The digest is MD5 because the vendor protocol mandates it; a
// single byte out of order and every request is rejected.
package signer

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
)

// Credentials are the four token fields appended to every canonical string.
type Credentials struct {
	UserID    string
	UserToken string
	AppKey    string
	AppToken  string
}

// Param is one method parameter. Callers supply params in the method's
// documented order; Sign never reorders them.
type Param struct {
	Key   string
	Value string
}

// P is shorthand for building a Param.
func P(key, value string) Param {
	return Param{Key: key, Value: value}
}

// Canonical returns the exact string that gets hashed:
// method:<m>[,k:v...],time:<t>,userid:<u>,usertoken:<ut>,appkey:<ak>,apptoken:<at>
func Canonical(method string, params []Param, creds Credentials, tick int64) string {
	var b strings.Builder
	b.WriteString("method:")
	b.WriteString(method)
	for _, p := range params {
		b.WriteString(",")
		b.WriteString(p.Key)
		b.WriteString(":")
		b.WriteString(p.Value)
	}
	fmt.Fprintf(&b, ",time:%d,userid:%s,usertoken:%s,appkey:%s,apptoken:%s",
		tick, creds.UserID, creds.UserToken, creds.AppKey, creds.AppToken)
	return b.String()
}

// Sign hashes the canonical string and returns the hex digest.
func Sign(method string, params []Param, creds Credentials, tick int64) string {
	sum := md5.Sum([]byte(Canonical(method, params, creds, tick)))
	return hex.EncodeToString(sum[:])
}
