package ginserver

import (
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"direct-messaging/internal/domain/directory"
	"direct-messaging/internal/infra/obs"
)

const principalContextKey = "dm.principal"

type principal struct {
	ID          string
	DisplayName string
	PhotoURL    string
	Token       string
}

func (p principal) actor() directory.Actor {
	return directory.Actor{ID: p.ID, DisplayName: p.DisplayName, PhotoURL: p.PhotoURL}
}

// AuthMiddleware resolves bearer tokens to actors. Browsers cannot set headers on a
// websocket handshake, so the live endpoint may pass the token as access_token.
type AuthMiddleware struct {
	Identity directory.Identity
	Logger   *slog.Logger
}

func (m AuthMiddleware) Handle(c *gin.Context) {
	token := extractBearerToken(c.GetHeader("Authorization"))
	if token == "" && strings.HasSuffix(c.Request.URL.Path, "/live") {
		token = strings.TrimSpace(c.Query("access_token"))
	}
	if token == "" || m.Identity == nil {
		c.Next()
		return
	}
	actor, ok := m.Identity.CurrentActor(c.Request.Context(), token)
	if !ok {
		if m.Logger != nil {
			m.Logger.Debug("token not recognised", "path", c.Request.URL.Path)
		}
		c.Next()
		return
	}
	setPrincipal(c, principal{
		ID:          actor.ID,
		DisplayName: actor.DisplayName,
		PhotoURL:    actor.PhotoURL,
		Token:       token,
	})
	c.Next()
}

func setPrincipal(c *gin.Context, p principal) {
	c.Set(principalContextKey, p)
	c.Set(obs.ActorKey, p.ID)
}

func currentPrincipal(c *gin.Context) (principal, bool) {
	val, exists := c.Get(principalContextKey)
	if !exists {
		return principal{}, false
	}
	p, ok := val.(principal)
	return p, ok
}

func requireActor(c *gin.Context) (principal, bool) {
	p, ok := currentPrincipal(c)
	if !ok || p.ID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "auth required"})
		return principal{}, false
	}
	return p, true
}

func extractBearerToken(header string) string {
	if header == "" {
		return ""
	}
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return ""
	}
	token := strings.TrimSpace(header[7:])
	return token
}
