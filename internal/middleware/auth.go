package middleware

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"keyopolls/internal/models"
	"keyopolls/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const ProfileKey = "profile"

// Auth verifies bearer tokens. Issuing tokens belongs to the account service; GenerateToken
// exists for tooling and tests.
type Auth struct {
	db     *gorm.DB
	secret []byte
	log    *zap.Logger
}

func NewAuth(conn *gorm.DB, secret string, log *zap.Logger) *Auth {
	return &Auth{db: conn, secret: []byte(secret), log: log}
}

// GenerateToken 签发 HS256 token，sub 为 profile id
func (a *Auth) GenerateToken(profileID uint, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(profileID), 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *Auth) parse(raw string) (uint, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid subject")
	}
	return uint(id), nil
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// LoadProfile resolves the bearer token into a Profile in the gin context. Requests
// without a token pass through anonymously; a bad token is rejected.
func (a *Auth) LoadProfile() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			c.Next()
			return
		}

		id, err := a.parse(raw)
		if err != nil {
			a.log.Debug("Rejected bearer token", zap.Error(err))
			abort(c, utils.Unauthorized("Invalid or expired token"))
			return
		}

		var profile models.Profile
		if err := a.db.WithContext(c.Request.Context()).First(&profile, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				abort(c, utils.Unauthorized("Profile not found"))
				return
			}
			a.log.Error("Load profile failed", zap.Uint("profile_id", id), zap.Error(err))
			abort(c, utils.ErrInternal)
			return
		}
		c.Set(ProfileKey, &profile)
		c.Next()
	}
}

// AuthRequired 未登录返回 401
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentProfile(c) == nil {
			abort(c, utils.ErrUnauthorized)
			return
		}
		c.Next()
	}
}

// ModeratorRequired must run after AuthRequired.
func ModeratorRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !CurrentProfile(c).IsModerator() {
			abort(c, utils.Forbidden("Moderator access required"))
			return
		}
		c.Next()
	}
}

// CurrentProfile returns nil for anonymous requests.
func CurrentProfile(c *gin.Context) *models.Profile {
	v, ok := c.Get(ProfileKey)
	if !ok {
		return nil
	}
	p, _ := v.(*models.Profile)
	return p
}

func abort(c *gin.Context, err *utils.AppError) {
	c.AbortWithStatusJSON(err.Code, gin.H{"error": err})
}
