package auth

import (
	"context"
	"net/http"

	jwtmiddleware "github.com/auth0/go-jwt-middleware/v2"
	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Aidin1998/crowdfund/common/apiutil"
	"github.com/Aidin1998/crowdfund/internal/identities"
	"github.com/Aidin1998/crowdfund/pkg/errors"
	"github.com/Aidin1998/crowdfund/pkg/models"
)

const (
	userKey   = "user"
	userIDKey = "userID"
)

// UserLoader resolves the subject of a validated token.
type UserLoader interface {
	GetUser(ctx context.Context, id uint) (*models.User, error)
}

// Middleware validates the bearer token, loads its user and rejects
// inactive accounts. The user is available through CurrentUser.
func Middleware(log *zap.Logger, jwtValidator *validator.Validator, users UserLoader) gin.HandlerFunc {
	errorHandler := func(w http.ResponseWriter, r *http.Request, err error) {
		log.Debug("encountered error while validating JWT", zap.Error(err))
	}
	middleware := jwtmiddleware.New(
		jwtValidator.ValidateToken,
		jwtmiddleware.WithErrorHandler(errorHandler),
	)

	return func(c *gin.Context) {
		var claims *validator.ValidatedClaims
		encounteredError := true
		var handler http.HandlerFunc = func(w http.ResponseWriter, r *http.Request) {
			encounteredError = false
			claims, _ = r.Context().Value(jwtmiddleware.ContextKey{}).(*validator.ValidatedClaims)
			c.Request = r
		}

		middleware.CheckJWT(handler).ServeHTTP(c.Writer, c.Request)

		if encounteredError || claims == nil {
			c.Header("WWW-Authenticate", "Bearer")
			apiutil.Problem(c, errors.Unauthorized.Explain("Could not validate credentials"))
			return
		}

		userID, err := identities.SubjectUserID(claims)
		if err != nil {
			apiutil.Problem(c, errors.Unauthorized.Explain("Could not validate credentials").Wrap(err))
			return
		}
		user, err := users.GetUser(c.Request.Context(), userID)
		if err != nil {
			if errors.Is(err, errors.NotFound) {
				err = errors.Unauthorized.Explain("Could not validate credentials")
			}
			apiutil.Problem(c, err)
			return
		}
		if !user.IsActive {
			apiutil.Problem(c, errors.Forbidden.Explain("Account is deactivated"))
			return
		}

		c.Set(userKey, user)
		c.Set(userIDKey, user.ID)
		c.Next()
	}
}

// RequireAdmin must run after Middleware.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok || !user.IsAdmin {
			apiutil.Problem(c, errors.Forbidden.Explain("Admin privileges required"))
			return
		}
		c.Next()
	}
}

// CurrentUser returns the user stored by Middleware.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok
}
