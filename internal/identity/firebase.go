// Package identity verifies Firebase ID tokens.
package identity

import (
	"context"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"selfcheckout/internal/services"
)

type tokenVerifier interface {
	VerifyIDTokenAndCheckRevoked(ctx context.Context, idToken string) (*auth.Token, error)
}

// FirebaseVerifier checks ID tokens with the Firebase Admin SDK.
type FirebaseVerifier struct {
	client tokenVerifier
}

// Config selects the Firebase project and its service-account credentials. Either
// CredentialsFile or CredentialsJSON must be set.
type Config struct {
	ProjectID       string
	CredentialsFile string
	CredentialsJSON string
}

// NewFirebaseVerifier initializes the Firebase app and its auth client.
func NewFirebaseVerifier(ctx context.Context, cfg Config) (*FirebaseVerifier, error) {
	var opt option.ClientOption
	switch {
	case cfg.CredentialsJSON != "":
		opt = option.WithCredentialsJSON([]byte(cfg.CredentialsJSON))
	case cfg.CredentialsFile != "":
		opt = option.WithCredentialsFile(cfg.CredentialsFile)
	default:
		return nil, errors.New("firebase credentials are not configured")
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opt)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase auth: %w", err)
	}
	return &FirebaseVerifier{client: client}, nil
}

// Verify checks the token signature, audience, expiry and revocation, and returns the
// subject with the profile claims it carries.
func (v *FirebaseVerifier) Verify(ctx context.Context, idToken string) (*services.Identity, error) {
	token, err := v.client.VerifyIDTokenAndCheckRevoked(ctx, idToken)
	if err != nil {
		return nil, err
	}
	if token.UID == "" {
		return nil, errors.New("firebase token has no subject")
	}
	verified, _ := token.Claims["email_verified"].(bool)
	return &services.Identity{
		UID:           token.UID,
		Email:         claim(token, "email"),
		EmailVerified: verified,
		Name:          claim(token, "name"),
		PhoneNumber:   claim(token, "phone_number"),
	}, nil
}

func claim(token *auth.Token, key string) string {
	v, _ := token.Claims[key].(string)
	return v
}
