package handlers

import (
	"github.com/gofiber/fiber/v2"

	"selfcheckout/internal/middleware"
	"selfcheckout/internal/services"
)

// AuthHandler handles HTTP requests for authentication.
type AuthHandler struct {
	authService *services.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// RegisterRoutes registers the authentication routes.
func (h *AuthHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	authRoutes := router.Group("/auth")
	authRoutes.Post("/phone/send-otp", h.HandleSendOTP)
	authRoutes.Post("/phone/verify-otp", h.HandleVerifyOTP)
	authRoutes.Post("/firebase", h.HandleFirebaseLogin)
	authRoutes.Post("/login", h.HandleLogin)
	authRoutes.Post("/forgot-password", h.HandleForgotPassword)
	authRoutes.Post("/reset-password/:token", h.HandleResetPassword)

	authRoutes.Post("/complete-registration", auth, h.HandleCompleteRegistration)
	authRoutes.Get("/profile", auth, h.HandleGetProfile)
	authRoutes.Put("/profile", auth, h.HandleUpdateProfile)
}

type sendOTPRequest struct {
	PhoneNumber string `json:"phoneNumber"`
}

type verifyOTPRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	OTP         string `json:"otp"`
}

type firebaseLoginRequest struct {
	IDToken string `json:"idToken"`
}

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Password string `json:"password"`
}

// HandleSendOTP issues a one-time code for the phone number.
func (h *AuthHandler) HandleSendOTP(c *fiber.Ctx) error {
	var req sendOTPRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	result, err := h.authService.SendOTP(c.UserContext(), req.PhoneNumber)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, result.Message, result)
}

// HandleVerifyOTP checks the code and logs the user in, creating the account on first use.
func (h *AuthHandler) HandleVerifyOTP(c *fiber.Ctx) error {
	var req verifyOTPRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	result, err := h.authService.VerifyOTP(c.UserContext(), req.PhoneNumber, req.OTP)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "Login successful", result)
}

// HandleFirebaseLogin exchanges an identity-provider ID token for a session token.
func (h *AuthHandler) HandleFirebaseLogin(c *fiber.Ctx) error {
	var req firebaseLoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	result, err := h.authService.FirebaseLogin(c.UserContext(), req.IDToken)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "Login successful", result)
}

// HandleLogin handles email and password login and issues a session token.
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	var req LoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	result, err := h.authService.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "Login successful", result)
}

// HandleForgotPassword emails a reset link. The response does not reveal whether the
// account exists.
func (h *AuthHandler) HandleForgotPassword(c *fiber.Ctx) error {
	var req forgotPasswordRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := h.authService.ForgotPassword(c.UserContext(), req.Email); err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "If an account exists for this email, a reset link has been sent", nil)
}

// HandleResetPassword sets a new password using the emailed token.
func (h *AuthHandler) HandleResetPassword(c *fiber.Ctx) error {
	var req resetPasswordRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := h.authService.ResetPassword(c.UserContext(), c.Params("token"), req.Password); err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "Password has been reset", nil)
}

// HandleCompleteRegistration finishes a first-time signup.
func (h *AuthHandler) HandleCompleteRegistration(c *fiber.Ctx) error {
	var in services.CompleteRegistrationInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	user, err := h.authService.CompleteRegistration(c.UserContext(), middleware.CurrentUser(c), in)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "Registration completed", user)
}

// HandleGetProfile returns the caller's profile.
func (h *AuthHandler) HandleGetProfile(c *fiber.Ctx) error {
	user, err := h.authService.GetProfile(c.UserContext(), middleware.CurrentUser(c).ID)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "", user)
}

// HandleUpdateProfile changes the caller's name and email.
func (h *AuthHandler) HandleUpdateProfile(c *fiber.Ctx) error {
	var in services.UpdateProfileInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	user, err := h.authService.UpdateProfile(c.UserContext(), middleware.CurrentUser(c), in)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "Profile updated successfully", user)
}
