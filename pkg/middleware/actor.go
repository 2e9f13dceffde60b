package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/roadmap-service/pkg/logging"
)

// Actor headers. Authentication happens upstream; these are trusted as given.
const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"

	ContextKeyActor = "actor"
)

// ActorInfo identifies the operator behind a request
type ActorInfo struct {
	ID       string
	Role     string
	Elevated bool
}

// Actor reads the actor headers and marks the actor elevated when its role
// is one of elevatedRoles (case-insensitive).
func Actor(elevatedRoles []string) gin.HandlerFunc {
	elevated := make(map[string]bool, len(elevatedRoles))
	for _, role := range elevatedRoles {
		elevated[strings.ToLower(strings.TrimSpace(role))] = true
	}

	return func(c *gin.Context) {
		actor := ActorInfo{
			ID:   strings.TrimSpace(c.GetHeader(HeaderActorID)),
			Role: strings.TrimSpace(c.GetHeader(HeaderActorRole)),
		}
		actor.Elevated = actor.Role != "" && elevated[strings.ToLower(actor.Role)]

		c.Set(ContextKeyActor, actor)
		if actor.ID != "" {
			c.Request = c.Request.WithContext(logging.ContextWithActorID(c.Request.Context(), actor.ID))
		}

		c.Next()
	}
}

// GetActor returns the request actor; the zero value when none was sent
func GetActor(c *gin.Context) ActorInfo {
	if val, exists := c.Get(ContextKeyActor); exists {
		if actor, ok := val.(ActorInfo); ok {
			return actor
		}
	}
	return ActorInfo{}
}
