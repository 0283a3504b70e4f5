package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/SAP-F-2025/exam-service/internal/config"
	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/utils"
	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/gin-gonic/gin"
)

const principalKey = "principal"

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid access token")
)

// TokenVerifier turns a bearer token into the caller it was issued to.
type TokenVerifier interface {
	Verify(token string) (models.Principal, error)
}

// CasdoorVerifier checks tokens signed by the configured casdoor application.
type CasdoorVerifier struct {
	client         *casdoorsdk.Client
	superAdminRole string
}

func NewCasdoorVerifier(cfg config.CasdoorConfig) *CasdoorVerifier {
	client := casdoorsdk.NewClient(
		cfg.Endpoint,
		cfg.ClientID,
		cfg.ClientSecret,
		cfg.Certificate,
		cfg.Organization,
		cfg.Application,
	)
	return &CasdoorVerifier{client: client, superAdminRole: cfg.SuperAdminRole}
}

func (v *CasdoorVerifier) Verify(token string) (models.Principal, error) {
	claims, err := v.client.ParseJwtToken(token)
	if err != nil {
		return models.Principal{}, errors.Join(ErrInvalidToken, err)
	}
	return PrincipalFromUser(&claims.User, v.superAdminRole), nil
}

// PrincipalFromUser maps a casdoor account onto the roles the exam service knows.
// An account is super-admin when casdoor flags it as admin or it holds superAdminRole.
func PrincipalFromUser(user *casdoorsdk.User, superAdminRole string) models.Principal {
	p := models.Principal{
		UserID:       user.Id,
		Email:        models.NormalizeEmail(user.Email),
		Name:         user.DisplayName,
		Role:         models.RoleStudent,
		IsSuperAdmin: user.IsAdmin,
	}
	if p.UserID == "" {
		p.UserID = user.Name
	}
	if p.Name == "" {
		p.Name = user.Name
	}

	for _, role := range user.Roles {
		if role == nil {
			continue
		}
		switch name := strings.ToLower(role.Name); {
		case superAdminRole != "" && name == strings.ToLower(superAdminRole):
			p.IsSuperAdmin = true
		case name == string(models.RoleAdmin):
			p.Role = models.RoleAdmin
		case name == string(models.RoleTeacher) && p.Role != models.RoleAdmin:
			p.Role = models.RoleTeacher
		}
	}
	return p
}

// Auth rejects requests without a valid bearer token and stores the caller
// in the gin context.
func Auth(verifier TokenVerifier, logger utils.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c.GetHeader("Authorization"))
		if err == nil {
			var p models.Principal
			p, err = verifier.Verify(token)
			if err == nil {
				SetPrincipal(c, p)
				c.Next()
				return
			}
		}

		logger.Warn("Authentication failed",
			"error", err,
			"path", c.Request.URL.Path,
			"client_ip", c.ClientIP(),
		)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
	}
}

// RequireStaff rejects callers whose Principal is not staff.
func RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFrom(c)
		if !ok || !p.IsStaff() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Staff access required"})
			return
		}
		c.Next()
	}
}

// PrincipalFrom returns the caller stored by Auth.
func PrincipalFrom(c *gin.Context) (models.Principal, bool) {
	v, exists := c.Get(principalKey)
	if !exists {
		return models.Principal{}, false
	}
	p, ok := v.(models.Principal)
	return p, ok
}

func SetPrincipal(c *gin.Context, p models.Principal) {
	c.Set(principalKey, p)
	c.Set("user_id", p.UserID)
}

func bearerToken(header string) (string, error) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrMissingToken
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}
