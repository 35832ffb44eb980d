package utils

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"time"
)

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// GenerateSessionID mints "session_<unix-ms>_<9 base36 chars>".
func GenerateSessionID(now time.Time) string {
	return "session_" + strconv.FormatInt(now.UnixMilli(), 10) + "_" + randomBase36(9)
}

func randomBase36(n int) string {
	out := make([]byte, n)
	max := big.NewInt(int64(len(base36)))
	for i := range out {
		v, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand failing is not worth losing a session over.
			out[i] = base36[time.Now().UnixNano()%int64(len(base36))]
			continue
		}
		out[i] = base36[v.Int64()]
	}
	return string(out)
}
