package http

import (
	"context"
	"net/http"

	"github.com/cropintel-api/internal/application/auth"
	"github.com/cropintel-api/internal/application/chat"
	"github.com/cropintel-api/internal/application/profile"
	"github.com/cropintel-api/internal/config"
	"github.com/cropintel-api/internal/otp"
	"github.com/cropintel-api/internal/transport/http/handler"
	appmiddleware "github.com/cropintel-api/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router. Background work it
// starts (rate limiter cleanup) stops when ctx is cancelled.
func NewRouter(ctx context.Context, cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	if len(deps.TrustedProxies) > 0 {
		r.Use(appmiddleware.TrustedRealIP(deps.TrustedProxies))
	}
	r.Use(appmiddleware.RequestLogger(deps.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authMw := appmiddleware.Auth(deps.JWTProvider)

	// 5 requests/second, burst of 10, applied to code issuance and credential endpoints.
	sensitiveRL := appmiddleware.NewRateLimiter(ctx, rate.Limit(5), 10)

	issuer := otp.NewIssuer(otp.IssuerDeps{
		Store:           deps.OTPStore,
		Mailer:          deps.Mailer,
		Clock:           deps.Clock,
		Expiry:          cfg.OTP.Expiry,
		DeliveryTimeout: cfg.SMTP.Timeout,
		Logger:          deps.Logger,
	})
	validator := otp.NewValidator(deps.OTPStore, deps.Clock, cfg.OTP.Expiry)

	authSvc := auth.NewService(auth.ServiceDeps{
		Users:      deps.UserRepo,
		Issuer:     issuer,
		Validator:  validator,
		Tokens:     deps.JWTProvider,
		Clock:      deps.Clock,
		BcryptCost: cfg.BcryptCost,
		Logger:     deps.Logger,
	})
	profileSvc := profile.NewService(deps.UserRepo, deps.Clock)
	chatSvc := chat.NewService(deps.ChatSessionRepo)

	healthH := handler.NewHealthHandler(deps.Ping)
	authH := handler.NewAuthHandler(authSvc)
	profileH := handler.NewProfileHandler(profileSvc)
	chatH := handler.NewChatHandler(chatSvc)

	r.Route("/v1", func(r chi.Router) {
		// Public routes
		r.Get("/health", healthH.Health)

		r.Group(func(r chi.Router) {
			r.Use(sensitiveRL.Limit)

			r.Post("/auth/register/otp", authH.RequestRegistrationOTP)
			r.Post("/auth/register", authH.Register)
			r.Post("/auth/login", authH.Login)
			r.Post("/auth/password-reset/otp", authH.RequestPasswordResetOTP)
			r.Post("/auth/password-reset/verify", authH.VerifyResetOTP)
			r.Post("/auth/password-reset", authH.ResetPassword)
		})

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Get("/profile", profileH.GetProfile)
			r.Post("/profile", profileH.UpdateProfile)
			r.Get("/personalization", profileH.GetPersonalization)
			r.Post("/personalization", profileH.SavePersonalization)
			r.Get("/chat/sessions", chatH.List)
			r.Post("/chat/sessions", chatH.Save)
			r.Delete("/chat/sessions/{sessionID}", chatH.Delete)
		})
	})

	return r
}
