package controller

import (
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/loyaltyapp/push-server/utils"
	"k8s.io/klog/v2"
)

const (
	localUserID = "user_id"
	adminRole   = "admin"
)

var errMissingSubject = errors.New("token has no subject")

// supabaseClaims are the claims of a Supabase access token
type supabaseClaims struct {
	Role  string `json:"role"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

func bearerToken(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// RequireWebhookSecret guards trigger endpoints called by the database webhook
// and the scheduler. Without a configured secret every caller is let through.
func (pc *PushController) RequireWebhookSecret(c *fiber.Ctx) error {
	if pc.WebhookSecret == "" {
		return c.Next()
	}
	token := bearerToken(c)
	if subtle.ConstantTimeCompare([]byte(token), []byte(pc.WebhookSecret)) != 1 {
		klog.Warningf("Rejected webhook call from %s", utils.IPAddress(c))
		return ErrUnauthorized(c)
	}
	return c.Next()
}

// RequireUser verifies the Supabase access token and stores its subject
func (pc *PushController) RequireUser(c *fiber.Ctx) error {
	userID, err := pc.verifyAccessToken(bearerToken(c))
	if err != nil {
		klog.V(3).Infof("Authentication failed from %s: %v", utils.IPAddress(c), err)
		return ErrUnauthorized(c)
	}
	c.Locals(localUserID, userID)
	return c.Next()
}

// RequireAdmin must run after RequireUser
func (pc *PushController) RequireAdmin(c *fiber.Ctx) error {
	userID, _ := c.Locals(localUserID).(string)
	if userID == "" {
		return ErrUnauthorized(c)
	}
	role, err := pc.Profiles.GetRole(c.UserContext(), userID)
	if err != nil {
		klog.Errorf("Error fetching profile for %s: %v", userID, err)
		return ErrInternalServerError(c, "Could not fetch user profile.")
	}
	if role != adminRole {
		klog.Warningf("User %s with role %q tried an admin push", userID, role)
		return ErrForbidden(c)
	}
	return c.Next()
}

func (pc *PushController) verifyAccessToken(raw string) (string, error) {
	if raw == "" {
		return "", jwt.ErrTokenMalformed
	}
	if pc.JWTSecret == "" {
		return "", errors.New("no JWT secret configured")
	}
	claims := &supabaseClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(pc.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", errMissingSubject
	}
	return claims.Subject, nil
}
