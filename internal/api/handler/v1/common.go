package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/levishimwe/Hadathub/internal/api/handler/v1/response"
	"github.com/levishimwe/Hadathub/internal/api/middleware"
	"github.com/levishimwe/Hadathub/internal/domain"
)

var errNoActor = errors.New("no authenticated actor on request")

func actorFrom(ctx *gin.Context) (domain.Actor, *response.Err) {
	actor, ok := middleware.ActorFromContext(ctx)
	if !ok {
		return domain.Actor{}, response.ErrUnauthorized(errNoActor)
	}
	return actor, nil
}

// bindJSON decodes the body into req and runs its validation rules.
func bindJSON(ctx *gin.Context, req interface{ Validate() error }) *response.Err {
	if err := ctx.ShouldBindJSON(req); err != nil {
		return response.ErrBadRequest(err)
	}
	if err := req.Validate(); err != nil {
		return response.ErrBadRequest(err)
	}
	return nil
}

// HandleHealthcheck godoc
// @Summary      Health check
// @Description  Reports that the server is up
// @Tags         health
// @Produce      json
// @Success      200  {object}  response.Health
// @Router       / [get]
func HandleHealthcheck(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, response.Health{Status: "ok"})
}
