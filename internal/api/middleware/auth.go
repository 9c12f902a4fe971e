package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/levishimwe/Hadathub/internal/api/handler/v1/response"
	"github.com/levishimwe/Hadathub/internal/domain"
	"github.com/levishimwe/Hadathub/internal/pkg/jwthelper"
)

const actorKey = "actor"

var (
	errMissingToken = errors.New("missing bearer token")
	errUnknownRole  = errors.New("unknown role claim")
)

type Authenticator struct {
	signingKey []byte
}

func NewAuthenticator(signingKey string) *Authenticator {
	return &Authenticator{
		signingKey: []byte(signingKey),
	}
}

// VerifyJWT trusts the role claim of a valid token and stores the caller as
// a domain.Actor on the request context.
func (a *Authenticator) VerifyJWT() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token := bearerToken(ctx)
		if token == "" {
			response.RenderErr(ctx, response.ErrUnauthorized(errMissingToken))
			return
		}

		claims, err := jwthelper.ParseToken(a.signingKey, token)
		if err != nil {
			response.RenderErr(ctx, response.ErrUnauthorized(err))
			return
		}

		role := domain.Role(claims.Role)
		if !role.Valid() {
			response.RenderErr(ctx, response.ErrUnauthorized(errUnknownRole))
			return
		}

		ctx.Set(actorKey, domain.Actor{UserID: claims.Subject, Role: role})
		ctx.Next()
	}
}

// bearerToken reads the Authorization header, falling back to the
// access_token query parameter browsers use for WebSocket upgrades.
func bearerToken(ctx *gin.Context) string {
	header := ctx.GetHeader("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ctx.Query("access_token")
}

func ActorFromContext(ctx *gin.Context) (domain.Actor, bool) {
	v, ok := ctx.Get(actorKey)
	if !ok {
		return domain.Actor{}, false
	}
	actor, ok := v.(domain.Actor)
	return actor, ok
}

// SetActor is used by tests that bypass token verification.
func SetActor(ctx *gin.Context, actor domain.Actor) {
	ctx.Set(actorKey, actor)
}
