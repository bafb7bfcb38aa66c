package auth

import (
	"time"

	"github.com/google/uuid"

	"github.com/jg-phare/mcslauncherd/internal/permission"
)

// ConnectionContext is the identity attached to one accepted WebSocket
// connection for its whole lifetime.
type ConnectionContext struct {
	Perms    permission.Set
	Expiry   time.Time
	TokenID  uuid.UUID
	PeerAddr string
	ConnID   uint64
}

// mainTokenExpiry is far enough out to outlive any realistic daemon uptime.
var mainTokenExpiry = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

// MainTokenContext returns the sentinel context granted to holders of the
// configured main token: match-all permissions, far-future expiry.
func MainTokenContext(peerAddr string, connID uint64) ConnectionContext {
	set, _ := permission.NewSet([]string{"**"})
	return ConnectionContext{
		Perms:    set,
		Expiry:   mainTokenExpiry,
		TokenID:  uuid.New(),
		PeerAddr: peerAddr,
		ConnID:   connID,
	}
}

// ContextFromClaims builds a connection context from verified JWT claims.
func ContextFromClaims(c Claims, peerAddr string, connID uint64) (ConnectionContext, error) {
	set, err := c.PermissionSet()
	if err != nil {
		return ConnectionContext{}, err
	}
	ctx := ConnectionContext{
		Perms:    set,
		PeerAddr: peerAddr,
		ConnID:   connID,
	}
	if c.ExpiresAt != nil {
		ctx.Expiry = c.ExpiresAt.Time
	}
	if id, err := uuid.Parse(c.ID); err == nil {
		ctx.TokenID = id
	}
	return ctx, nil
}
