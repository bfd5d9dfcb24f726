package controller

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/loyaltyapp/push-server/models"
	"github.com/loyaltyapp/push-server/models/dbmodels"
	"github.com/loyaltyapp/push-server/net"
	"github.com/loyaltyapp/push-server/utils"
	"k8s.io/klog/v2"
)

var ErrReconcileInProgress = errors.New("reconcile already in progress")

type PostDispatcher interface {
	Dispatch(ctx context.Context, post models.PostRecord) (*models.DispatchResult, error)
}

type ReceiptReconciler interface {
	Reconcile(ctx context.Context) (*models.ReconcileResult, error)
}

// DispatchGuard remembers which posts were already dispatched
type DispatchGuard interface {
	ClaimDispatch(ctx context.Context, postID string, ttl time.Duration) (bool, error)
	ReleaseDispatch(ctx context.Context, postID string) error
}

type ReconcileLock interface {
	AcquireReconcileLock(ctx context.Context, ttl time.Duration) (bool, error)
	ReleaseReconcileLock(ctx context.Context) error
}

type TokenRegistry interface {
	AddOrUpdateToken(ctx context.Context, userID string, token string) error
	GetTokensForUser(ctx context.Context, userID string) ([]dbmodels.PushToken, error)
}

type HealthCheck interface {
	Ping(ctx context.Context) error
}

type RoleLookup interface {
	GetRole(ctx context.Context, userID string) (string, error)
}

type TokenValidator interface {
	IsValidToken(token string) bool
}

type PushController struct {
	Dispatcher PostDispatcher
	Reconciler ReceiptReconciler
	// Guard and Lock are optional
	Guard         DispatchGuard
	DedupeTTL     time.Duration
	Lock          ReconcileLock
	LockTTL       time.Duration
	Health        HealthCheck
	Tokens        TokenRegistry
	Profiles      RoleLookup
	Validator     TokenValidator
	JWTSecret     string
	WebhookSecret string
}

// DispatchPost sends the post once. A post already claimed by an earlier
// trigger delivery comes back as a duplicate without sending.
func (pc *PushController) DispatchPost(ctx context.Context, post models.PostRecord) (*models.DispatchResult, error) {
	claimed := false
	if pc.Guard != nil {
		ok, err := pc.Guard.ClaimDispatch(ctx, post.ID, pc.DedupeTTL)
		if err != nil {
			klog.Errorf("Error claiming dispatch of post %s, sending unguarded: %v", post.ID, err)
		} else if !ok {
			klog.Infof("Post %s was already dispatched", post.ID)
			return &models.DispatchResult{Success: true, Duplicate: true, Message: "Post already dispatched."}, nil
		} else {
			claimed = true
		}
	}

	result, err := pc.Dispatcher.Dispatch(ctx, post)
	if err != nil {
		if claimed {
			if releaseErr := pc.Guard.ReleaseDispatch(context.Background(), post.ID); releaseErr != nil {
				klog.Errorf("Error releasing dispatch claim of post %s: %v", post.ID, releaseErr)
			}
		}
		return nil, err
	}
	return result, nil
}

// HandlePostEvent is the Pub/Sub entry point for the same insert event
func (pc *PushController) HandlePostEvent(ctx context.Context, post models.PostRecord) error {
	result, err := pc.DispatchPost(ctx, post)
	if err != nil {
		return err
	}
	if result.Duplicate {
		return net.ErrDuplicatePost
	}
	return nil
}

// RunReconcile reconciles once, unless another run holds the lock
func (pc *PushController) RunReconcile(ctx context.Context) (*models.ReconcileResult, error) {
	if pc.Lock != nil {
		locked, err := pc.Lock.AcquireReconcileLock(ctx, pc.LockTTL)
		if err != nil {
			return nil, err
		}
		if !locked {
			return nil, ErrReconcileInProgress
		}
		defer func() {
			if err := pc.Lock.ReleaseReconcileLock(context.Background()); err != nil {
				klog.Errorf("Error releasing reconcile lock: %v", err)
			}
		}()
	}
	return pc.Reconciler.Reconcile(ctx)
}

// decodePostEvent returns a nil post once it has answered a bad request
func decodePostEvent(c *fiber.Ctx) (*models.PostRecord, error) {
	var event models.PostEvent
	if err := json.Unmarshal(c.Body(), &event); err != nil {
		klog.Errorf("Error unmarshalling post event %s", err)
		return nil, ErrInvalidRequest(c)
	}
	post, err := event.Post()
	if err != nil {
		return nil, ErrBadRequest(c, err.Error())
	}
	return &post, nil
}

func dispatchResponse(c *fiber.Ctx, postID string, result *models.DispatchResult, err error) error {
	if err != nil {
		klog.Errorf("Error dispatching post %s: %v", postID, err)
		return ErrInternalServerError(c, err.Error())
	}
	return c.Status(fiber.StatusOK).JSON(result)
}

// HandleDispatch answers the database webhook fired on post insert
func (pc *PushController) HandleDispatch(c *fiber.Ctx) error {
	post, err := decodePostEvent(c)
	if post == nil {
		return err
	}
	klog.Infof("Dispatching post %s requested by %s", post.ID, utils.IPAddress(c))
	result, err := pc.DispatchPost(c.UserContext(), *post)
	return dispatchResponse(c, post.ID, result, err)
}

// HandleAdminDispatch sends a post on an admin's request. It skips the
// dispatch claim so a post can be sent again on purpose.
func (pc *PushController) HandleAdminDispatch(c *fiber.Ctx) error {
	post, err := decodePostEvent(c)
	if post == nil {
		return err
	}
	userID, _ := c.Locals(localUserID).(string)
	klog.Infof("Admin %s dispatching post %s", userID, post.ID)
	result, err := pc.Dispatcher.Dispatch(c.UserContext(), *post)
	return dispatchResponse(c, post.ID, result, err)
}

// HandleReconcile runs the receipt reconciler and answers in plain text
func (pc *PushController) HandleReconcile(c *fiber.Ctx) error {
	result, err := pc.RunReconcile(c.UserContext())
	if errors.Is(err, ErrReconcileInProgress) {
		return ErrConflict(c, err.Error())
	}
	if err != nil {
		klog.Errorf("Error reconciling push receipts: %v", err)
		return ErrInternalServerError(c, err.Error())
	}
	return c.Status(fiber.StatusOK).SendString(result.Message)
}

// HandleRegisterToken saves the caller's device token
func (pc *PushController) HandleRegisterToken(c *fiber.Ctx) error {
	var req models.PushTokenRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return ErrInvalidRequest(c)
	}
	if req.PushToken == "" || !pc.Validator.IsValidToken(req.PushToken) {
		return ErrBadRequest(c, "Invalid push token")
	}
	userID, _ := c.Locals(localUserID).(string)
	if err := pc.Tokens.AddOrUpdateToken(c.UserContext(), userID, req.PushToken); err != nil {
		klog.Errorf("Error saving push token for %s: %v", userID, err)
		return ErrInternalServerError(c, "Unable to save push token")
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true})
}

// HandleListTokens returns the caller's registered devices
func (pc *PushController) HandleListTokens(c *fiber.Ctx) error {
	userID, _ := c.Locals(localUserID).(string)
	tokens, err := pc.Tokens.GetTokensForUser(c.UserContext(), userID)
	if err != nil {
		klog.Errorf("Error loading push tokens for %s: %v", userID, err)
		return ErrInternalServerError(c, "Unable to load push tokens")
	}
	if tokens == nil {
		tokens = []dbmodels.PushToken{}
	}
	return c.Status(fiber.StatusOK).JSON(tokens)
}

func (pc *PushController) HandleHealth(c *fiber.Ctx) error {
	if pc.Health != nil {
		if err := pc.Health.Ping(c.UserContext()); err != nil {
			klog.Errorf("Health check failed: %v", err)
			return c.Status(fiber.StatusServiceUnavailable).SendString("redis unavailable")
		}
	}
	return c.SendString("ok")
}
