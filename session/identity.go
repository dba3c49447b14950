package session

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is what the console can tell about a token without verifying it.
type Identity struct {
	Subject   string
	ExpiresAt time.Time
}

var segmentParser = jwt.NewParser()

// ParseIdentity decodes the claim segment of a three-part dotted token and
// reads its subject. It never fails: anything unreadable yields ok=false.
// The signature is not checked; the backend does that.
func ParseIdentity(token string) (Identity, bool) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return Identity{}, false
	}
	raw, err := segmentParser.DecodeSegment(parts[1])
	if err != nil {
		return Identity{}, false
	}
	var claims jwt.MapClaims
	if err := json.Unmarshal(raw, &claims); err != nil {
		return Identity{}, false
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return Identity{}, false
	}
	id := Identity{Subject: sub}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		id.ExpiresAt = exp.Time
	}
	return id, true
}
