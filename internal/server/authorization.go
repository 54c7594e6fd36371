package server

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/importduty/internal/observability/context"
)

func (s *Server) authorize(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.authorizeWithContext(c, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func (s *Server) authorizeWithContext(c *gin.Context, object string, action string) error {
	actor, ok := obscontext.ActorFromContext(c.Request.Context())
	if !ok {
		return ErrUnauthorized
	}
	if s.authzSvc == nil {
		return ErrForbidden
	}
	return s.authzSvc.Authorize(c.Request.Context(), subject(actor), strings.TrimSpace(object), strings.TrimSpace(action))
}

func subject(actor obscontext.Actor) string {
	return fmt.Sprintf("user:%s", actor.ID)
}
