package api

import (
	"context"

	"github.com/limbo/plankup/internal/service"
	"github.com/limbo/plankup/pkg/entity"
	jwtservice "github.com/limbo/plankup/pkg/jwt_service"
)

type JWTServiceI interface {
	GenerateToken(identity entity.Identity) (string, error)
	ParseToken(tokenString string) (*jwtservice.Claims, error)
}

type TrackerRegistryI interface {
	// Returns a loaded tracker of the user, creating it on first use
	Get(ctx context.Context, identity entity.Identity) (service.TrackerI, error)
}
